package api

import (
	"net/http"
)

type StatusResponse struct {
	Status string `json:"status"`
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz reports 200 once ready returns true, 503 before.
func Readyz(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			WriteJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "not ready"})
			return
		}
		WriteJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
	}
}
