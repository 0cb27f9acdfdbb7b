package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks a single attempt that hit its deadline or got a
	// reachability failure back from the command. It never leaves Fetch.
	ErrTimeout = errors.New("attempt timed out")

	// ErrUnreachable means the whole schedule was consumed without a
	// report. The control plane could not be reached; it is not a local
	// fault.
	ErrUnreachable = errors.New("control plane unreachable")

	// ErrProcess means the report command could not be started at all.
	ErrProcess = errors.New("report command failed to start")

	// ErrReportFile means the temporary report file could not be created
	// or read back.
	ErrReportFile = errors.New("report file unavailable")
)

// Error is the terminal failure returned by Fetch.
type Error struct {
	// Kind is one of ErrUnreachable, ErrProcess, ErrReportFile, or a
	// context error when the run was cancelled.
	Kind error

	// Attempts is the number of attempts that ran.
	Attempts int

	// Path of the report file holding the last attempt's output, if one
	// was created. The caller owns its removal.
	Path string

	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch report: %v after %d attempt(s)", e.Kind, e.Attempts)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// ReportPath extracts the report file path carried by a fetch error.
func ReportPath(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Path
	}
	return ""
}
