//go:generate mockgen -destination=mock_runner.go -package=fetch ceph-check/internal/fetch Runner

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Command is the external report command.
type Command struct {
	Path string
	Args []string
	Env  []string
}

func (c Command) String() string {
	return fmt.Sprint(append([]string{c.Path}, c.Args...))
}

// DefaultCommand is `ceph report`.
func DefaultCommand() Command {
	return Command{Path: "/usr/bin/ceph", Args: []string{"report"}}
}

// Result describes a process that was started.
type Result struct {
	ExitCode int
	Stderr   []byte
	TimedOut bool
}

// Runner starts cmd, streams its stdout into stdout and waits for it to
// exit or for ctx to end. A non-nil error means the process could not be
// started (or ctx was cancelled); exit status is reported through Result.
type Runner interface {
	Run(ctx context.Context, cmd Command, stdout io.Writer) (Result, error)
}

const maxStderr = 64 << 10

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for I/O after the process has
	// been killed.
	WaitDelay time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 2 * time.Second}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command, stdout io.Writer) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	var stderr bytes.Buffer
	c.Stdout = stdout
	c.Stderr = &limitedWriter{w: &stderr, n: maxStderr}
	c.WaitDelay = r.WaitDelay

	if err := c.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	err := c.Wait()
	res := Result{Stderr: stderr.Bytes()}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		return res, fmt.Errorf("wait %s: %w", cmd.Path, err)
	}
	return res, nil
}

// limitedWriter keeps the first n bytes and drops the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n <= 0 {
		return len(p), nil
	}
	chunk := p
	if len(chunk) > l.n {
		chunk = chunk[:l.n]
	}
	n, err := l.w.Write(chunk)
	l.n -= n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
