package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soledexapp/soledex-server/internal/http/response"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRunReports(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]any{
		"runs":  runs,
		"total": len(runs),
	}, s.logger)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRunReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, run, s.logger)
}
