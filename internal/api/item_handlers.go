package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/http/response"
)

// ItemSummary is the list-view projection of a catalog item.
type ItemSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Colorway    string  `json:"colorway,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	RetailPrice float64 `json:"retail_price,omitempty"`
	ImageCount  int     `json:"image_count"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var (
		items []*domain.CanonicalItem
		err   error
	)
	if brand := r.URL.Query().Get("brand"); brand != "" {
		items, err = s.store.ListItemsByBrand(r.Context(), brand)
	} else {
		items, err = s.store.ListItems(r.Context())
	}
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	summaries := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		count, countErr := s.store.CountImagesByItem(r.Context(), item.ID)
		if countErr != nil {
			response.HandleError(w, countErr, s.logger)
			return
		}
		summaries = append(summaries, ItemSummary{
			ID:          item.ID,
			Name:        item.Name,
			Brand:       item.Brand,
			Colorway:    item.Colorway,
			SKU:         item.SKU,
			RetailPrice: item.RetailPrice,
			ImageCount:  count,
		})
	}

	response.Success(w, map[string]any{
		"items": summaries,
		"total": len(summaries),
	}, s.logger)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, item, s.logger)
}

func (s *Server) handleListItemImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetItem(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	images, err := s.store.ListImagesByItem(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]any{
		"images": images,
		"total":  len(images),
	}, s.logger)
}

func (s *Server) handleListItemPrices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetItem(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	prices, err := s.store.ListPricesByItem(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]any{
		"prices": prices,
		"total":  len(prices),
	}, s.logger)
}
