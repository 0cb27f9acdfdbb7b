package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ceph-check/internal/config"
	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"
	"ceph-check/internal/probe"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

const longHelp = `ceph-check collects a point-in-time report from the Ceph control plane
and prints what needs attention: monitors, OSDs, pools and placement groups.

Conditions for a successful run:
  1. The ceph CLI (and any other configured tool) is on PATH.
  2. The admin keyring is readable. The path comes from the keyring option
     in ceph.conf, falling back to /etc/ceph/ceph.client.admin.keyring.
  3. The monitors answer ` + "`ceph report`" + ` within the retry schedule.

Exit codes:
  0   diagnostics emitted
  1   cluster not healthy (only with --fail-on-warn)
  2   precondition failed
  3   control plane unreachable
  4   report unreadable
  5   report command could not run
  64  usage or configuration error
  130 interrupted`

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: probe.ExitUsage, err: err}
}

// app is shared by the subcommands once the root has loaded the config.
type app struct {
	configPath string
	debug      bool

	cfg     *config.Config
	logger  *logs.Logger
	metrics *metrics.Registry
	stdout  io.Writer
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func newRootCmd(stdout io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout}

	root := &cobra.Command{
		Use:           "ceph-check",
		Short:         "Ceph cluster health probe",
		Long:          longHelp,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return usageError(err)
			}
			if a.debug {
				cfg.Log.Level = "debug"
			}
			logger, err := logs.New(cfg.Log)
			if err != nil {
				return usageError(err)
			}
			a.cfg, a.logger, a.metrics = cfg, logger, metrics.NewRegistry()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Path to the configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(checkCmd(a))
	root.AddCommand(serveCmd(a))
	root.AddCommand(versionCmd(a))
	return root, a
}

func run(args []string, stdout, stderr io.Writer) int {
	root, a := newRootCmd(stdout)
	defer a.close()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return probe.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return probe.ExitUsage
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
