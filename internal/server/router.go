package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signal-site/relay/internal/handlers"
	"github.com/signal-site/relay/internal/middleware"
)

// NewRouter constructs a ServeMux with the relay routes registered.
func NewRouter(ghost *handlers.GhostHandler, stripe *handlers.StripeHandler) http.Handler {
	mux := http.NewServeMux()

	// Webhook endpoints
	mux.HandleFunc("/webhook/post-published", ghost.HandlePostPublished)
	mux.HandleFunc("/webhook/checkout-completed", stripe.HandleCheckoutCompleted)

	// Health endpoints
	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/readyz", handlers.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
