package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ceph-check/internal/fetch"
	"ceph-check/internal/precheck"
	"ceph-check/internal/probe"
	"ceph-check/internal/render"

	"github.com/spf13/cobra"
)

type checkFlags struct {
	keepReport bool
	failOnWarn bool
	output     string
	schedule   []time.Duration
	reportDir  string
	conf       string
	keyring    string
	command    string
}

func checkCmd(a *app) *cobra.Command {
	var f checkFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch a cluster report and print diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, a); err != nil {
				return usageError(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := newProbe(a).Run(ctx)
			if err := render.Write(a.stdout, a.cfg.Output.Format, res, a.cfg.Output.FailOnWarn); err != nil {
				return usageError(err)
			}
			if code := res.ExitCode(a.cfg.Output.FailOnWarn); code != probe.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.keepReport, "keep-report", false, "Keep the report file for postmortem")
	cmd.Flags().BoolVar(&f.failOnWarn, "fail-on-warn", false, "Exit 1 when the cluster is not healthy")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "Output format: text or json")
	cmd.Flags().DurationSliceVar(&f.schedule, "schedule", nil, "Per-attempt timeouts, longest first (e.g. 300s,200s,100s,50s)")
	cmd.Flags().StringVar(&f.reportDir, "report-dir", "", "Directory for report files")
	cmd.Flags().StringVar(&f.conf, "conf", "", "Path to ceph.conf")
	cmd.Flags().StringVar(&f.keyring, "keyring", "", "Keyring to use instead of the one from ceph.conf")
	cmd.Flags().StringVar(&f.command, "ceph", "", "Path to the ceph binary")
	return cmd
}

// apply lets explicitly set flags override the configuration file.
func (f *checkFlags) apply(cmd *cobra.Command, a *app) error {
	flags := cmd.Flags()
	cfg := a.cfg

	if flags.Changed("keep-report") {
		cfg.Fetch.KeepReport = f.keepReport
	}
	if flags.Changed("fail-on-warn") {
		cfg.Output.FailOnWarn = f.failOnWarn
	}
	if flags.Changed("output") {
		cfg.Output.Format = f.output
	}
	if flags.Changed("schedule") {
		cfg.Fetch.Schedule = f.schedule
	}
	if flags.Changed("report-dir") {
		cfg.Fetch.ReportDir = f.reportDir
	}
	if flags.Changed("conf") {
		cfg.Precheck.ConfPath = f.conf
	}
	if flags.Changed("keyring") {
		cfg.Precheck.Keyring = f.keyring
	}
	if flags.Changed("ceph") {
		cfg.Fetch.Command = f.command
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Fetch.ReportDir != "" {
		if info, err := os.Stat(cfg.Fetch.ReportDir); err != nil || !info.IsDir() {
			return errors.New("report dir " + cfg.Fetch.ReportDir + " is not a directory")
		}
	}
	return nil
}

func newProbe(a *app) *probe.Probe {
	gate := precheck.NewGate(a.cfg.Precheck, a.logger, a.metrics)
	runner := &fetch.ExecRunner{WaitDelay: a.cfg.Fetch.WaitDelay}
	return probe.New(a.cfg, gate, runner, a.logger, a.metrics)
}
