package api

import "net/http"

func RegisterRoutes(mux *http.ServeMux, h *Handler) http.Handler {
	// Probe APIs
	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("GET /health/last", h.GetLastHealth)

	// Observability APIs
	mux.HandleFunc("GET /metrics", h.GetMetrics)
	mux.HandleFunc("GET /logs", h.GetLogs)

	logger := h.logger.WithComponent("api")
	return Chain(
		mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)
}
