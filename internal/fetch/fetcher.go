package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"
)

// reachabilityPhrases are stderr fragments the ceph CLI prints when it
// cannot authenticate against, or connect to, the monitors.
var reachabilityPhrases = regexp.MustCompile(
	`(timed out|TimedOut|authentication error|(?i:error connecting to the cluster)|ObjectNotFound)`,
)

// Raw is a fetched report.
type Raw struct {
	// Path of the file holding the report. The caller owns its removal.
	Path     string
	Data     []byte
	Attempts int
}

// Outcome of a single attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeProcessError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeProcessError:
		return "process_error"
	default:
		return "unknown"
	}
}

// Attempt records one run of the report command. It only lives long
// enough to be logged.
type Attempt struct {
	Number  int
	Timeout time.Duration
	Elapsed time.Duration
	Outcome Outcome
	Err     error
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config controls a Fetcher.
type Config struct {
	Command  Command
	Schedule Schedule
	// Dir receives the temporary report files; empty means os.TempDir.
	Dir string
	// Prefix of report file names. A timestamp and a random suffix are
	// appended.
	Prefix string
}

func DefaultConfig() Config {
	return Config{
		Command:  DefaultCommand(),
		Schedule: DefaultSchedule(),
		Prefix:   "ceph-report-",
	}
}

type Option func(*Fetcher)

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// Fetcher runs the report command under the retry schedule.
type Fetcher struct {
	cfg     Config
	runner  Runner
	logger  *logs.Logger
	metrics *metrics.Registry
	sleep   Sleeper
	now     func() time.Time
}

func NewFetcher(
	cfg Config,
	runner Runner,
	logger *logs.Logger,
	reg *metrics.Registry,
	opts ...Option,
) *Fetcher {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	f := &Fetcher{
		cfg:     cfg,
		runner:  runner,
		logger:  logger.WithComponent("fetch"),
		metrics: reg,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch writes the command's output to a fresh temporary file and returns
// it once an attempt produces a report. Attempts that time out are retried
// until the schedule is exhausted, which yields ErrUnreachable. A command
// that cannot be started yields ErrProcess without retrying.
func (f *Fetcher) Fetch(ctx context.Context) (*Raw, error) {
	if f.cfg.Schedule.Len() == 0 {
		return nil, &Error{Kind: ErrUnreachable, Cause: errEmptySchedule}
	}

	file, err := os.CreateTemp(f.cfg.Dir, f.cfg.Prefix+f.now().Format("20060102-150405")+"-*")
	if err != nil {
		f.logger.Error("cannot create report file, check permissions", "dir", f.cfg.Dir, "error", err)
		return nil, &Error{Kind: ErrReportFile, Cause: err}
	}
	defer file.Close()

	path := file.Name()
	f.logger.Debug("report file created", "path", path, "schedule", f.cfg.Schedule.String())

	st := newState(f.cfg.Schedule)
	var last Attempt

	for st.attempting() {
		last = f.attempt(ctx, st, file)

		switch last.Outcome {
		case OutcomeSuccess:
			st.succeed()
			data, err := readAll(file)
			if err != nil {
				return nil, &Error{Kind: ErrReportFile, Attempts: last.Number, Path: path, Cause: err}
			}
			f.metrics.Inc(metrics.FetchSuccessTotal)
			return &Raw{Path: path, Data: data, Attempts: last.Number}, nil

		case OutcomeProcessError:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &Error{Kind: ctxErr, Attempts: last.Number, Path: path}
			}
			// Exec failures are not transient.
			f.metrics.Inc(metrics.FetchProcessErrorsTotal)
			f.logger.Error("report command could not be run, not retrying",
				"attempt", last.Number, "command", f.cfg.Command.String(), "error", last.Err)
			return nil, &Error{Kind: ErrProcess, Attempts: last.Number, Path: path, Cause: last.Err}
		}

		f.metrics.Inc(metrics.FetchTimeoutsTotal)
		if !st.fail() {
			break
		}

		// The timeout that just expired doubles as the pause before the
		// next attempt. No pause follows the last attempt.
		wait := last.Timeout
		f.logger.Info("waiting before next attempt",
			"wait", wait.String(), "remaining_attempts", st.remaining())
		if err := f.sleep(ctx, wait); err != nil {
			return nil, &Error{Kind: err, Attempts: last.Number, Path: path}
		}
		f.metrics.Add(metrics.FetchWaitMillisTotal, wait.Milliseconds())
	}

	f.metrics.Inc(metrics.FetchUnreachableTotal)
	f.logger.Error("control plane unreachable: report command kept timing out; check monitor and network health, not this host",
		"attempts", last.Number, "schedule", f.cfg.Schedule.String(), "report_file", path)
	return nil, &Error{Kind: ErrUnreachable, Attempts: last.Number, Path: path, Cause: last.Err}
}

func (f *Fetcher) attempt(ctx context.Context, st *state, file *os.File) Attempt {
	a := Attempt{Number: st.attempt(), Timeout: st.timeout()}
	f.metrics.Inc(metrics.FetchAttemptsTotal)

	// Each attempt starts from an empty file; a timed out attempt's
	// partial output stays until the next one begins.
	if err := resetFile(file); err != nil {
		a.Outcome, a.Err = OutcomeProcessError, fmt.Errorf("%w: %v", ErrReportFile, err)
		return a
	}

	f.logger.Info("running report command",
		"attempt", a.Number, "timeout", a.Timeout.String(), "command", f.cfg.Command.String())

	actx, cancel := context.WithTimeout(ctx, a.Timeout)
	start := f.now()
	res, err := f.runner.Run(actx, f.cfg.Command, file)
	a.Elapsed = f.now().Sub(start)
	cancel()

	if err != nil {
		a.Outcome, a.Err = OutcomeProcessError, err
		return a
	}

	a.Outcome, a.Err = f.classify(res, file)
	switch a.Outcome {
	case OutcomeSuccess:
		f.logger.Info("report command succeeded",
			"attempt", a.Number, "elapsed", a.Elapsed.String())
	case OutcomeTimeout:
		f.logger.Warn("report attempt failed: control plane did not answer",
			"attempt", a.Number, "timeout", a.Timeout.String(),
			"elapsed", a.Elapsed.String(), "error", a.Err)
	}
	return a
}

// classify decides whether a finished process produced a report. A clean
// exit with the report marker wins over anything printed on stderr; the CLI
// logs monitor hunting there even when it later connects.
func (f *Fetcher) classify(res Result, file *os.File) (Outcome, error) {
	if res.TimedOut {
		return OutcomeTimeout, ErrTimeout
	}
	stderr := bytes.TrimSpace(res.Stderr)
	if res.ExitCode != 0 {
		return OutcomeTimeout, fmt.Errorf("%w: exit status %d: %s", ErrTimeout, res.ExitCode, tail(stderr))
	}

	marker, size, err := reportMarker(file)
	if err != nil {
		return OutcomeProcessError, fmt.Errorf("%w: %v", ErrReportFile, err)
	}
	if marker {
		return OutcomeSuccess, nil
	}
	if size == 0 {
		return OutcomeTimeout, fmt.Errorf("%w: empty report: %s", ErrTimeout, tail(stderr))
	}
	if reachabilityPhrases.Match(stderr) {
		return OutcomeTimeout, fmt.Errorf("%w: %s", ErrTimeout, tail(stderr))
	}
	// The command answered; whatever it wrote goes to the parser, which
	// reports it as malformed rather than unreachable.
	f.logger.Warn("report output does not start with a JSON object", "bytes", size)
	return OutcomeSuccess, nil
}

// reportMarker reports whether the first non-space byte of the file is '{'.
func reportMarker(file *os.File) (bool, int64, error) {
	info, err := file.Stat()
	if err != nil {
		return false, 0, err
	}
	buf := make([]byte, 512)
	n, err := file.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, info.Size(), err
	}
	trimmed := bytes.TrimLeft(buf[:n], " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{', info.Size(), nil
}

func resetFile(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	_, err := file.Seek(0, io.SeekStart)
	return err
}

func readAll(file *os.File) ([]byte, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(file)
}

func tail(b []byte) string {
	const keep = 240
	if len(b) > keep {
		b = b[len(b)-keep:]
	}
	return string(b)
}
