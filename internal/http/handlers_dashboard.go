package http

import (
	"net/http"
	"time"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dash.Summarize(r.Context(), owner(r), s.dash.Now(s.loc))
	if err != nil {
		s.writeError(w, r, "dashboard", err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

type healthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth reports liveness only; it never touches the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Success: true, Status: "ok", Timestamp: time.Now().UTC()})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Timestamp: time.Now().UTC()})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Success: true, Status: "ready", Timestamp: time.Now().UTC()})
}
