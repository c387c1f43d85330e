package handlers

import (
	"context"
	"net/http"
	"time"

	"paidqa/internal/logger"
)

// PingResponse is the response for the ping endpoint
type PingResponse struct {
	Status string `json:"status"`
}

// PingHandler handles the /api/ping endpoint
func PingHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, PingResponse{Status: "ok"})
}

// HandleHealth reports whether the database is reachable.
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.users.Ping(ctx); err != nil {
		logger.Error(0, "health_check_failed", "error="+err.Error())
		respondJSON(w, http.StatusServiceUnavailable, PingResponse{Status: "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, PingResponse{Status: "ok"})
}
