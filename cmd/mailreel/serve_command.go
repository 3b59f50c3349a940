package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mailreel/internal/daemonctl"
	"mailreel/internal/daemonrun"
	"mailreel/internal/metrics"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and mailbox poller in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the server is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := daemonctl.NewClient(cfg)
			status, err := client.Status(cmd.Context())
			running := err == nil && status.Running
			var snapshot *metrics.Snapshot
			if running {
				if snap, metricsErr := client.Metrics(cmd.Context()); metricsErr == nil {
					snapshot = &snap
				}
			}
			if ctx.jsonOutput() {
				payload := map[string]any{
					"running": running,
					"pid":     status.PID,
					"api":     cfg.Paths.APIBind,
				}
				if snapshot != nil {
					payload["metrics"] = snapshot
				}
				return writeJSON(cmd, payload)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if !running {
				detail := "not reachable at " + cfg.Paths.APIBind
				if err != nil && !errors.Is(err, daemonctl.ErrNotRunning) {
					detail = err.Error()
				}
				fmt.Fprintln(out, renderStatusLine("Server", statusWarn, detail, colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Server", statusOK, fmt.Sprintf("running (pid %d) on %s", status.PID, cfg.Paths.APIBind), colorize))
			if snapshot != nil {
				fmt.Fprintln(out, renderStatusLine("Items", statusInfo, fmt.Sprintf("%d succeeded, %d failed, %d skipped in %d batches",
					snapshot.Counters[metrics.CounterItemsSucceeded],
					snapshot.Counters[metrics.CounterItemsFailed],
					snapshot.Counters[metrics.CounterItemsSkipped],
					snapshot.Counters[metrics.CounterBatches],
				), colorize))
			}
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cmd.Context(), cfg.PIDPath(), grace)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Server is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.Forced {
				fmt.Fprintf(cmd.OutOrStdout(), "Server (pid %d) did not exit within %s and was killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "How long to wait for in-flight batches before killing")
	return cmd
}
