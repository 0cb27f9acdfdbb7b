package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"
	"ceph-check/internal/probe"
	"ceph-check/internal/render"
)

// Prober runs one health check.
type Prober interface {
	Run(ctx context.Context) *probe.Result
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	prober     Prober
	metrics    *metrics.Registry
	logger     *logs.Logger
	failOnWarn bool

	// runMu serialises probes; only one report command runs at a time.
	runMu sync.Mutex
	last  atomic.Pointer[probe.Result]
}

// NewHandler creates a new API handler.
func NewHandler(
	prober Prober,
	metrics *metrics.Registry,
	logger *logs.Logger,
	failOnWarn bool,
) *Handler {
	return &Handler{
		prober:     prober,
		metrics:    metrics,
		logger:     logger,
		failOnWarn: failOnWarn,
	}
}

/* ---------------- GET /health ---------------- */

// GetHealth runs a probe and answers with its result. Concurrent requests
// wait for the running probe to finish and then run their own.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.runMu.Lock()
	res := h.prober.Run(r.Context())
	h.runMu.Unlock()
	h.last.Store(res)

	h.writeResult(w, res)
}

/* ---------------- GET /health/last ---------------- */

// GetLastHealth answers with the most recent result without waiting for a
// probe in progress.
func (h *Handler) GetLastHealth(w http.ResponseWriter, r *http.Request) {
	res := h.last.Load()

	if res == nil {
		http.Error(w, "no probe has run yet", http.StatusNotFound)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) writeResult(w http.ResponseWriter, res *probe.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(res.ExitCode(h.failOnWarn)))
	_ = json.NewEncoder(w).Encode(render.NewDocument(res, h.failOnWarn))
}

func statusFor(code int) int {
	switch code {
	case probe.ExitOK:
		return http.StatusOK
	case probe.ExitMalformed:
		return http.StatusBadGateway
	case probe.ExitProcess, probe.ExitPrecondition:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.metrics.Snapshot())
}

/* ---------------- GET /logs ---------------- */

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.logger.GetLast(n))
}
