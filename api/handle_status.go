package api

import (
	"net/http"
)

func (s *Server) handleHealthGet(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]interface{}{"health_status": "degraded", "database": err.Error()})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"health_status": "online"})
}

// handleCursorsGet lists the last block handled by each log subscription.
func (s *Server) handleCursorsGet(w http.ResponseWriter, r *http.Request) {
	cursors, err := s.db.GetLastIndexedBlocks(r.Context())
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}
	JSON(w, http.StatusOK, cursors)
}
