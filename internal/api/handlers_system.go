// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"
)

type statusResponse struct {
	Status       string    `json:"status"`
	Service      string    `json:"service"`
	GPUAvailable bool      `json:"gpu_available"`
	Timestamp    time.Time `json:"timestamp"`
}

// handleStatus answers the client connectivity check.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:       "online",
		Service:      s.serviceName,
		GPUAvailable: s.gpuAvailable(),
		Timestamp:    s.now().UTC(),
	})
}
