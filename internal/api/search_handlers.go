package api

import (
	"net/http"
	"strconv"

	"github.com/soledexapp/soledex-server/internal/http/response"
	"github.com/soledexapp/soledex-server/internal/search"
)

// maxSearchLimit caps the page size a client can request.
const maxSearchLimit = 100

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := search.DefaultParams()
	params.Query = q.Get("q")
	params.Brand = q.Get("brand")

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxSearchLimit {
			response.BadRequest(w, "limit must be between 1 and 100", s.logger)
			return
		}
		params.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			response.BadRequest(w, "offset must be a non-negative integer", s.logger)
			return
		}
		params.Offset = offset
	}

	var err error
	if params.MinPrice, err = parseFloat(q.Get("min_price")); err != nil {
		response.BadRequest(w, "min_price must be a number", s.logger)
		return
	}
	if params.MaxPrice, err = parseFloat(q.Get("max_price")); err != nil {
		response.BadRequest(w, "max_price must be a number", s.logger)
		return
	}
	if params.MinYear, err = parseInt(q.Get("min_year")); err != nil {
		response.BadRequest(w, "min_year must be an integer", s.logger)
		return
	}
	if params.MaxYear, err = parseInt(q.Get("max_year")); err != nil {
		response.BadRequest(w, "max_year must be an integer", s.logger)
		return
	}

	if v := q.Get("sort"); v != "" {
		params.SortBy = v
	}
	if v := q.Get("order"); v != "" {
		params.SortOrder = v
	}
	if v := q.Get("facets"); v != "" {
		params.IncludeFacets = v == "true" || v == "1"
	}

	result, err := s.search.Search(r.Context(), params)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
