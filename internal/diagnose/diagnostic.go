package diagnose

import (
	"fmt"

	"ceph-check/internal/report"
)

// Severity of a single finding. The zero value is SeverityOK.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(text []byte) error {
	for _, candidate := range []Severity{SeverityOK, SeverityInfo, SeverityWarning, SeverityError} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// FromStatus maps the coarse cluster status onto a severity.
func FromStatus(s report.Status) Severity {
	switch s {
	case report.StatusOK:
		return SeverityOK
	case report.StatusWarning:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Diagnostic is one human-readable finding.
type Diagnostic struct {
	Subsystem report.Subsystem `json:"subsystem"`
	Severity  Severity         `json:"severity"`
	Message   string           `json:"message"`
	// Attrs carries the structured values behind Message.
	Attrs          map[string]string `json:"attrs,omitempty"`
	Recommendation string            `json:"recommendation,omitempty"`
}

// Worst returns the highest severity in diags, or SeverityOK when empty.
func Worst(diags []Diagnostic) Severity {
	worst := SeverityOK
	for _, d := range diags {
		if d.Severity > worst {
			worst = d.Severity
		}
	}
	return worst
}

// Count returns how many diagnostics carry exactly sev.
func Count(diags []Diagnostic, sev Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}
