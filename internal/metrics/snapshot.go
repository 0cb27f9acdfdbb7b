package metrics

import "sync/atomic"

// Get reads one counter. Unknown keys read as zero.
func (r *Registry) Get(key MetricKey) int64 {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(ptr)
}

// Snapshot copies every counter touched so far, keyed by name. It is what
// the /metrics endpoint serves.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]int64, len(r.counters))
	for key, ptr := range r.counters {
		snap[string(key)] = atomic.LoadInt64(ptr)
	}
	return snap
}
