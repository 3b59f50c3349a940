package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mailreel/internal/api"
	"mailreel/internal/config"
	"mailreel/internal/store"
)

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"clips"},
		Short:   "Inspect rendered clips",
	}
	cmd.AddCommand(newArtifactsListCommand(ctx))
	cmd.AddCommand(newArtifactsShowCommand(ctx))
	cmd.AddCommand(newArtifactsDeleteCommand(ctx))
	return cmd
}

func newArtifactsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				artifacts, err := api.NewArtifactService(st).List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ArtifactListResponse{Items: artifacts})
				}
				out := cmd.OutOrStdout()
				if len(artifacts) == 0 {
					fmt.Fprintln(out, "No clips rendered yet")
					return nil
				}
				rows := make([][]string, 0, len(artifacts))
				for _, a := range artifacts {
					rows = append(rows, []string{
						a.MessageID,
						strconv.FormatFloat(a.DurationSeconds, 'f', 1, 64),
						a.Background,
						a.CreatedAt,
						a.Locator,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Message", "Seconds", "Background", "Created", "Locator"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of clips to list")
	return cmd
}

func newArtifactsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <message-id>",
		Short: "Show one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				artifact, err := api.NewArtifactService(st).Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if artifact == nil {
					return fmt.Errorf("no clip for message %s", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ArtifactResponse{Item: *artifact})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Message:    %s\n", artifact.MessageID)
				fmt.Fprintf(out, "Locator:    %s\n", artifact.Locator)
				fmt.Fprintf(out, "Duration:   %.1fs\n", artifact.DurationSeconds)
				fmt.Fprintf(out, "Geometry:   %dx%d\n", artifact.Width, artifact.Height)
				fmt.Fprintf(out, "Background: %s\n", artifact.Background)
				if artifact.ThumbnailLocator != "" {
					fmt.Fprintf(out, "Thumbnail:  %s\n", artifact.ThumbnailLocator)
				}
				fmt.Fprintf(out, "Created:    %s\n", artifact.CreatedAt)
				return nil
			})
		},
	}
}

func newArtifactsDeleteCommand(ctx *commandContext) *cobra.Command {
	var removeFiles bool
	cmd := &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Forget a clip so the message renders again on the next run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				artifact, err := st.GetArtifact(cmd.Context(), id)
				if err != nil {
					return err
				}
				deleted, err := st.DeleteArtifact(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted || artifact == nil {
					return fmt.Errorf("no clip for message %s", id)
				}
				if removeFiles {
					for _, path := range []string{artifact.Locator, artifact.ThumbnailLocator} {
						if path == "" {
							continue
						}
						if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
							return fmt.Errorf("remove %s: %w", path, err)
						}
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted clip for %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&removeFiles, "files", false, "Also remove the video and thumbnail files")
	return cmd
}

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List recent item failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				failures, err := api.NewArtifactService(st).Failures(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FailureListResponse{Items: failures})
				}
				out := cmd.OutOrStdout()
				if len(failures) == 0 {
					fmt.Fprintln(out, "No failures recorded")
					return nil
				}
				rows := make([][]string, 0, len(failures))
				for _, f := range failures {
					rows = append(rows, []string{f.CreatedAt, f.MessageID, f.Stage, f.ErrorKind, f.Error})
				}
				fmt.Fprintln(out, renderTable([]string{"When", "Message", "Stage", "Kind", "Error"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of failures to list")
	return cmd
}
