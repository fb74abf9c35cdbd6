package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/sluice/internal/presentation/tui"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <schedule>",
	Short: "Run a schedule until it finishes",
	Long: `Runs the schedule from its saved position until it reaches EXIT, fails or is
aborted. The first Ctrl+C requests an abort, which takes effect at the next
node boundary; a second one stops immediately. Either way the last position
is kept and the next run resumes from it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		quiet, _ := cmd.Flags().GetBool("quiet")
		format, _ := cmd.Flags().GetString("format")

		var hooks []domain.LifecycleHooks
		if !quiet {
			hooks = append(hooks, runner.NewReporter(cmd.OutOrStdout(), runner.Format(format)).Hooks())
		}
		a, err := newApp(hooks...)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.MetricsAddr != "" {
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "err", err)
				}
			}()
			defer srv.Close()
		}

		sm := runner.NewSignalManager(func() {
			fmt.Fprintln(os.Stderr, "Abort requested, stopping at the next node. Press Ctrl+C again to stop now.")
			if err := a.engine.Abort(context.Background(), name); err != nil {
				logger.Error("abort request failed", "schedule", name, "err", err)
			}
		})
		defer sm.Stop()

		if !quiet && format != string(runner.FormatJSON) {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		status, err := a.engine.Run(sm.Context(), name)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted; progress is saved.")
			return nil
		}
		if err != nil {
			return err
		}
		if !quiet && format != string(runner.FormatJSON) {
			s, err := a.engine.Load(cmd.Context(), name)
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), tui.StatusLine(name, status, s.CurrentNode))
			}
		}
		return nil
	},
}

var stepCmd = &cobra.Command{
	Use:   "step <schedule>",
	Short: "Advance a schedule by one node",
	Long: `Performs the current node once and saves the new position. With --edge-only
the node is skipped and only its outgoing edge is followed; with --to-job the
schedule advances until it stands on a job node.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edgeOnly, _ := cmd.Flags().GetBool("edge-only")
		toJob, _ := cmd.Flags().GetBool("to-job")

		mode := sluiceStepMode(edgeOnly, toJob)
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.engine.Step(cmd.Context(), args[0], mode)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.StatusLine(args[0], res.Status, res.Node))
		if res.Delay > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "next check in %s\n", res.Delay)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print progress")
	runCmd.Flags().String("format", string(runner.FormatText), "Progress format: text or json")

	rootCmd.AddCommand(stepCmd)
	stepCmd.Flags().Bool("edge-only", false, "Follow the outgoing edge without performing the node")
	stepCmd.Flags().Bool("to-job", false, "Advance until the current node is a job")
	stepCmd.MarkFlagsMutuallyExclusive("edge-only", "to-job")
}
