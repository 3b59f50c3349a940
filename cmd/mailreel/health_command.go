package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mailreel/internal/api"
	"mailreel/internal/config"
	"mailreel/internal/daemonctl"
	"mailreel/internal/logging"
	"mailreel/internal/pipeline"
	"mailreel/internal/preflight"
	"mailreel/internal/store"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check pipeline readiness",
		Long: "Check pipeline readiness. When a server is running its report is shown;\n" +
			"otherwise, or with --offline, the checks run locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var (
				health api.PipelineHealth
				source = "local"
			)
			if !offline {
				health, err = daemonctl.NewClient(cfg).PipelineHealth(cmd.Context())
				if err == nil {
					source = "server"
				} else if !errors.Is(err, daemonctl.ErrNotRunning) {
					return err
				}
			}
			if source == "local" {
				health, err = localHealth(cmd.Context(), cfg)
				if err != nil {
					return err
				}
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, health); err != nil {
					return err
				}
			} else {
				renderHealth(cmd.OutOrStdout(), source, health)
			}
			if !health.Ready {
				return errors.New("pipeline is not ready")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Run checks locally even if a server is running")
	return cmd
}

func localHealth(ctx context.Context, cfg *config.Config) (api.PipelineHealth, error) {
	remotes, err := pipeline.RemoteChecks(cfg, logging.NewNop())
	if err != nil {
		return api.PipelineHealth{}, err
	}
	checks := preflight.RunAll(ctx, cfg, remotes...)
	health := api.PipelineHealth{
		Ready:  preflight.Ready(checks),
		Stages: api.FromStageHealth(preflight.StageHealth(cfg)),
		Checks: checks,
	}

	st, err := store.Open(cfg)
	if err != nil {
		health.Ready = false
		health.Database = &api.DatabaseHealth{Path: cfg.DatabasePath(), Error: err.Error()}
		return health, nil
	}
	defer st.Close()
	dbHealth, err := st.CheckHealth(ctx)
	converted := api.FromDatabaseHealth(dbHealth)
	if err != nil {
		converted.Error = err.Error()
	}
	if err != nil || !dbHealth.IntegrityCheck {
		health.Ready = false
	}
	health.Database = &converted
	if summary, err := api.NewArtifactService(st).Summary(ctx); err == nil {
		health.Summary = &summary
	}
	return health, nil
}

func renderHealth(out io.Writer, source string, health api.PipelineHealth) {
	colorize := shouldColorize(out)
	emit := func(lines ...string) {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}

	emit(renderSectionHeader("Checks ("+source+")", colorize)...)
	for _, check := range health.Checks {
		emit(renderStatusLine(check.Name, checkKind(check.Passed, check.Optional), check.Detail, colorize))
	}

	emit("")
	emit(renderSectionHeader("Stages", colorize)...)
	for _, st := range health.Stages {
		emit(renderStatusLine(st.Name, checkKind(st.Ready, true), st.Detail, colorize))
	}

	if db := health.Database; db != nil {
		emit("")
		emit(renderSectionHeader("Store", colorize)...)
		switch {
		case db.Error != "":
			emit(renderStatusLine("Database", statusError, db.Error, colorize))
		default:
			emit(renderStatusLine("Database", checkKind(db.IntegrityCheck, false),
				fmt.Sprintf("%s (schema v%d)", db.Path, db.SchemaVersion), colorize))
		}
		if s := health.Summary; s != nil {
			emit(renderStatusLine("Clips", statusInfo,
				fmt.Sprintf("%d rendered, %.0fs total, %d failures", s.Artifacts, s.TotalDurationSeconds, s.Failures), colorize))
		}
	}

	emit("")
	if health.Ready {
		emit(renderStatusLine("Pipeline", statusOK, "ready", colorize))
	} else {
		emit(renderStatusLine("Pipeline", statusError, "not ready", colorize))
	}
}
