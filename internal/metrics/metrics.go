package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Probe runs
	ProbeRunsTotal     MetricKey = "probe_runs_total"
	ProbeFailuresTotal MetricKey = "probe_failures_total"

	// Precondition gate
	PrecheckFailuresTotal MetricKey = "precheck_failures_total"

	// Report fetch
	FetchAttemptsTotal      MetricKey = "fetch_attempts_total"
	FetchSuccessTotal       MetricKey = "fetch_success_total"
	FetchTimeoutsTotal      MetricKey = "fetch_timeouts_total"
	FetchUnreachableTotal   MetricKey = "fetch_unreachable_total"
	FetchProcessErrorsTotal MetricKey = "fetch_process_errors_total"
	FetchWaitMillisTotal    MetricKey = "fetch_wait_millis_total"

	// Report parse
	ParseMalformedTotal      MetricKey = "parse_malformed_total"
	ParseSkippedEntriesTotal MetricKey = "parse_skipped_entries_total"

	// Classification
	DiagnosticsWarningTotal MetricKey = "diagnostics_warning_total"
	DiagnosticsErrorTotal   MetricKey = "diagnostics_error_total"

	// Report janitor
	JanitorRunsTotal           MetricKey = "janitor_runs_total"
	JanitorReportsRemovedTotal MetricKey = "janitor_reports_removed_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}
