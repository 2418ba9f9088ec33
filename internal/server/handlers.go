// Package server provides the HTTP server and routing for the statements service.
package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "statements",
	}
	status := http.StatusOK

	if err := s.systemHandlers.checkDatabase(r.Context()); err != nil {
		response["status"] = "unhealthy"
		response["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if info, err := s.systemHandlers.snapshots.Snapshot(); err != nil {
		response["snapshot"] = err.Error()
	} else {
		response["snapshot"] = info.Version
	}

	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
