package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ceph-check/internal/api"
	"ceph-check/internal/fetch"
	"ceph-check/internal/janitor"

	"github.com/spf13/cobra"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve probe results over HTTP",
		Long: `Serve runs one probe per GET /health request, one at a time. It also
exposes /health/last, /metrics and /logs, and periodically removes stale
report files from the report directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Serve.Addr = addr
			}
			if err := a.cfg.Validate(); err != nil {
				return usageError(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Serve.Addr)
			if err != nil {
				return usageError(err)
			}
			return serve(ctx, a, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:9283)")
	return cmd
}

// serve blocks until ctx ends, then shuts the server down.
func serve(ctx context.Context, a *app, ln net.Listener) error {
	logger := a.logger.WithComponent("serve")

	dir := janitor.NewReportDir(a.cfg.Fetch.ReportDir, fetch.DefaultConfig().Prefix, a.cfg.Serve.ReportMaxAge, a.logger)
	go janitor.New(dir, a.cfg.Serve.JanitorInterval, a.logger, a.metrics).Start(ctx)

	handler := api.NewHandler(newProbe(a), a.metrics, a.logger, a.cfg.Output.FailOnWarn)
	server := &http.Server{
		Handler:           api.RegisterRoutes(http.NewServeMux(), handler),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx, which kills a running report command.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- server.Serve(ln) }()
	logger.Info("server started", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
