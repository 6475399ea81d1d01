package handlers

import (
	"net/http"

	"github.com/signal-site/relay/internal/httputil"
)

// Health is the liveness endpoint.
func Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is the readiness endpoint. The relay holds no local state, so
// being up is being ready.
func Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
