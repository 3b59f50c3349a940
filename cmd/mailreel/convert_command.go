package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mailreel/internal/api"
	"mailreel/internal/config"
	"mailreel/internal/mailbox"
	"mailreel/internal/message"
	"mailreel/internal/pipeline"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [file|-]",
		Short: "Render a clip for a single message",
		Long:  "Render a clip for one message given as an .eml file, a JSON object, or plain email text.\nWith no argument or -, the message is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			raw, err := readSingleMessage(cmd.InOrStdin(), source)
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, _ *config.Config, p *pipeline.Pipeline) error {
				outcome, err := p.Coordinator.ProcessMessage(runCtx, raw)
				if err != nil {
					return err
				}
				result := api.FromOutcome(outcome)
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, result); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(itemHeaders, [][]string{itemRow(result)}, nil))
				}
				if !outcome.Succeeded() {
					return fmt.Errorf("message %s failed at %s: %s", outcome.MessageID, outcome.StageReached, outcome.Error)
				}
				return nil
			})
		},
	}
}

func readSingleMessage(stdin io.Reader, source string) (message.Raw, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return api.DecodeMessage(data)
	}
	path, err := config.ExpandPath(source)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		return mailbox.ReadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return api.DecodeMessage(data)
}
