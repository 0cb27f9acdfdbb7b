package diagnose

// Summary condenses a diagnostic list into a verdict.
type Summary struct {
	Status          Severity     `json:"status"`
	Headline        string       `json:"headline"`
	Warnings        int          `json:"warnings"`
	Errors          int          `json:"errors"`
	Diagnostics     []Diagnostic `json:"diagnostics"`
	Recommendations []string     `json:"recommendations"`
}

// Healthy reports whether nothing above Info was found.
func (s Summary) Healthy() bool {
	return s.Status <= SeverityInfo
}

// Summarize builds a Summary. Recommendations keep their first-seen order
// and appear once.
func Summarize(diags []Diagnostic) Summary {
	var (
		recommendations = []string{}
		seen            = map[string]bool{}
	)
	for _, d := range diags {
		if d.Recommendation == "" || seen[d.Recommendation] {
			continue
		}
		seen[d.Recommendation] = true
		recommendations = append(recommendations, d.Recommendation)
	}

	s := Summary{
		Status:          Worst(diags),
		Warnings:        Count(diags, SeverityWarning),
		Errors:          Count(diags, SeverityError),
		Diagnostics:     diags,
		Recommendations: recommendations,
	}
	if s.Diagnostics == nil {
		s.Diagnostics = []Diagnostic{}
	}

	switch s.Status {
	case SeverityError:
		s.Headline = "Cluster health issues detected"
	case SeverityWarning:
		s.Headline = "Cluster is up with warnings"
	default:
		s.Headline = "Cluster is healthy"
	}
	return s
}
