package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/savings/internal/common"
)

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Get("/api/version", s.handleVersion)
	r.Handle("/metrics", s.app.Metrics.Handler())
}

// handleHealth reports ok once storage is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.Storage.LedgerStore().ListAccountIDs(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Health check: storage unavailable")
		WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.app.Storage.Backend(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
