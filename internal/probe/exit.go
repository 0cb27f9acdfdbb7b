package probe

import (
	"context"
	"errors"

	"ceph-check/internal/fetch"
	"ceph-check/internal/report"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitNotOK        = 1
	ExitPrecondition = 2
	ExitUnreachable  = 3
	ExitMalformed    = 4
	ExitProcess      = 5
	ExitUsage        = 64
	ExitInterrupted  = 130
)

// ExitCode maps the run outcome to a process exit code. A cluster that is
// up but not healthy exits 0 unless failOnWarn is set.
func (r *Result) ExitCode(failOnWarn bool) int {
	if r.Err != nil {
		return ExitCodeFor(r.Err)
	}
	if failOnWarn && !r.Summary.Healthy() {
		return ExitNotOK
	}
	return ExitOK
}

// ExitCodeFor classifies a pipeline error.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPrecondition):
		return ExitPrecondition
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, fetch.ErrUnreachable):
		return ExitUnreachable
	case errors.Is(err, report.ErrMalformed):
		return ExitMalformed
	default:
		return ExitProcess
	}
}

// Hint tells the operator where to look for a failure.
func Hint(err error) string {
	switch ExitCodeFor(err) {
	case ExitPrecondition:
		return "fix the local environment (keyring, ceph.conf, required tools) and re-run"
	case ExitUnreachable:
		return "the cluster is unreachable: check monitor and network health, not this host"
	case ExitMalformed:
		return "the cluster answered but its report is unreadable: check control-plane version compatibility"
	case ExitInterrupted:
		return "the probe was interrupted"
	case ExitProcess:
		return "the report command could not run: check the ceph binary and the report directory"
	default:
		return ""
	}
}
