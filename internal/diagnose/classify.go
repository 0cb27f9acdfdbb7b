package diagnose

import "ceph-check/internal/report"

// Sections is the order findings are emitted in.
var Sections = []Section{
	OverallSection,
	SummarySection,
	MonitorSection,
	DaemonSection,
	PoolSection,
	PlacementGroupSection,
}

// Classify turns a parsed report into an ordered list of findings. It has
// no side effects; the same report always yields the same diagnostics.
func Classify(r *report.ClusterReport) []Diagnostic {
	if r == nil {
		return nil
	}
	var out []Diagnostic
	for _, section := range Sections {
		out = append(out, section(r)...)
	}
	return out
}
