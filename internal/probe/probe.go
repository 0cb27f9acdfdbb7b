// Package probe runs one health check end to end: precondition gate,
// report fetch, parse and classification.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ceph-check/internal/config"
	"ceph-check/internal/diagnose"
	"ceph-check/internal/fetch"
	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"
	"ceph-check/internal/precheck"
	"ceph-check/internal/report"

	"github.com/google/uuid"
)

// ErrPrecondition wraps every failure of the precondition gate.
var ErrPrecondition = errors.New("precondition failed")

// Gate validates the local environment.
type Gate interface {
	Check() (*precheck.Result, error)
}

// Result is the outcome of one run.
type Result struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Attempts int       `json:"attempts"`

	Report  *report.ClusterReport `json:"report,omitempty"`
	Summary diagnose.Summary      `json:"summary"`

	// ReportPath is set when the report file was kept.
	ReportPath string `json:"report_path,omitempty"`

	Err error `json:"-"`
}

// Error is Err as text, empty on success.
func (r *Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Option func(*Probe)

// WithFetchOptions passes options to every fetcher the probe builds.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(p *Probe) { p.fetchOpts = append(p.fetchOpts, opts...) }
}

// WithRunID replaces the run id generator.
func WithRunID(fn func() string) Option {
	return func(p *Probe) { p.newID = fn }
}

// Probe is safe to reuse; each Run is independent.
type Probe struct {
	cfg       *config.Config
	gate      Gate
	runner    fetch.Runner
	logger    *logs.Logger
	metrics   *metrics.Registry
	fetchOpts []fetch.Option
	newID     func() string
	now       func() time.Time
}

func New(
	cfg *config.Config,
	gate Gate,
	runner fetch.Runner,
	logger *logs.Logger,
	reg *metrics.Registry,
	opts ...Option,
) *Probe {
	p := &Probe{
		cfg:     cfg,
		gate:    gate,
		runner:  runner,
		logger:  logger,
		metrics: reg,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline. The returned Result is never nil; Result.Err
// tells which stage failed.
func (p *Probe) Run(ctx context.Context) *Result {
	res := &Result{RunID: p.newID(), Started: p.now()}
	logger := p.logger.With("run_id", res.RunID)
	plog := logger.WithComponent("probe")

	p.metrics.Inc(metrics.ProbeRunsTotal)
	plog.Info("probe started")

	res.Err = p.run(ctx, res, logger, plog)
	res.Finished = p.now()

	if res.Err != nil {
		p.metrics.Inc(metrics.ProbeFailuresTotal)
		plog.Error("probe failed", "error", res.Err, "exit_code", res.ExitCode(false))
		return res
	}
	plog.Info("probe finished",
		"status", res.Summary.Status.String(),
		"warnings", res.Summary.Warnings,
		"errors", res.Summary.Errors,
		"duration", res.Finished.Sub(res.Started).String())
	return res
}

func (p *Probe) run(ctx context.Context, res *Result, logger, plog *logs.Logger) error {
	pre, err := p.gate.Check()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	fc, err := p.cfg.FetchConfig(pre.Args()...)
	if err != nil {
		return err
	}
	fetcher := fetch.NewFetcher(fc, p.runner, logger, p.metrics, p.fetchOpts...)

	raw, err := fetcher.Fetch(ctx)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) {
			res.Attempts = fe.Attempts
		}
		res.ReportPath = p.cleanup(plog, fetch.ReportPath(err))
		return err
	}
	res.Attempts = raw.Attempts
	res.ReportPath = p.cleanup(plog, raw.Path)

	rep, err := report.Parse(raw.Data)
	if err != nil {
		p.metrics.Inc(metrics.ParseMalformedTotal)
		plog.Error("control plane answered but the report is unreadable; check ceph version compatibility",
			"error", err, "bytes", len(raw.Data))
		return err
	}
	res.Report = rep

	for _, s := range rep.Skipped {
		p.metrics.Inc(metrics.ParseSkippedEntriesTotal)
		plog.Warn("report entry skipped", "subsystem", string(s.Subsystem), "index", s.Index, "reason", s.Reason())
	}

	diags := diagnose.Classify(rep)
	res.Summary = diagnose.Summarize(diags)
	p.metrics.Add(metrics.DiagnosticsWarningTotal, int64(res.Summary.Warnings))
	p.metrics.Add(metrics.DiagnosticsErrorTotal, int64(res.Summary.Errors))

	for _, d := range diags {
		if d.Severity >= diagnose.SeverityWarning {
			plog.Warn(d.Message, "subsystem", string(d.Subsystem), "severity", d.Severity.String())
		}
	}
	return nil
}

// cleanup removes the report file unless it is to be kept, and returns the
// path when it was kept.
func (p *Probe) cleanup(logger *logs.Logger, path string) string {
	if path == "" {
		return ""
	}
	if p.cfg.Fetch.KeepReport {
		logger.Info("report file kept", "path", path)
		return path
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("cannot remove report file", "path", path, "error", err)
		return path
	}
	logger.Debug("report file removed", "path", path)
	return ""
}
