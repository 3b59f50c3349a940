package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mailreel/internal/pipeline"
	"mailreel/internal/services/ffmpeg"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage bundled assets",
	}
	cmd.AddCommand(newAssetsInitCommand(ctx))
	return cmd
}

func newAssetsInitCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the default narration audio used when speech fails",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			muxer := ffmpeg.New(cfg.FFmpegBinary(), cfg.Video.FontFile, time.Duration(cfg.Video.MuxTimeoutSeconds)*time.Second, logger)
			written, err := pipeline.EnsureDefaultAudio(cmd.Context(), cfg, muxer, force)
			if err != nil {
				return err
			}
			if written {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote default audio to %s\n", cfg.Paths.DefaultAudio)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Default audio already present at %s (use --force to regenerate)\n", cfg.Paths.DefaultAudio)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate even if the file exists")
	return cmd
}
