package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/sluice"
	sluicehttp "github.com/aretw0/sluice/pkg/adapters/http"
	"github.com/aretw0/sluice/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [schedule]...",
	Short: "Serve the schedule API and optionally run schedules",
	Long: `Starts the HTTP API over the stored schedules: listing, inspection, validation,
Mermaid graphs, abort requests, metrics and a server-sent event stream.
Schedules named as arguments are run in the background while the server is
up, and their events are streamed to /events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTPAddr
		}

		streams := sluicehttp.NewStreamManager()
		hooks := observability.AuditHooks(logger.With("component", "audit"))

		a, err := newApp(hooks, sluicehttp.StreamHooks(streams))
		if err != nil {
			return err
		}
		defer a.Close()

		api := sluicehttp.NewServer(a.engine.Store(),
			sluicehttp.WithAbortSignal(a.engine.AbortSignal()),
			sluicehttp.WithMetrics(a.metrics.Handler()),
			sluicehttp.WithVersion(sluice.Version),
			sluicehttp.WithLogger(logger),
			sluicehttp.WithStreams(streams),
		)
		srv := &http.Server{Addr: addr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, name := range args {
			go func() {
				status, err := a.engine.Run(ctx, name)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("run failed", "schedule", name, "err", err)
					return
				}
				logger.Info("run ended", "schedule", name, "status", status)
			}()
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting Sluice Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "err", err)
				_ = srv.Close()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sluice Server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config http_addr)")
}
