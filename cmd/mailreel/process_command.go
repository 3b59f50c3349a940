package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mailreel/internal/api"
	"mailreel/internal/config"
	"mailreel/internal/mailbox"
	"mailreel/internal/message"
	"mailreel/internal/pipeline"
	"mailreel/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var inputPath string
	var mailboxPath string
	var limit int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Render clips for a batch of messages",
		Long: "Render clips for a batch of messages read from --input (JSON, .eml, maildir, or - for stdin)\n" +
			"or from the newest messages in --mailbox. Messages that already have a clip are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath != "" && mailboxPath != "" {
				return errors.New("use either --input or --mailbox, not both")
			}
			if concurrency > 0 {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				cfg.Batch.Concurrency = concurrency
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, cfg *config.Config, p *pipeline.Pipeline) error {
				var (
					report workflow.Report
					err    error
				)
				switch {
				case inputPath != "":
					var raws []message.Raw
					raws, err = readInput(runCtx, cmd.InOrStdin(), inputPath, limit)
					if err != nil {
						return err
					}
					if maxItems := cfg.Batch.MaxItems; maxItems > 0 && len(raws) > maxItems {
						return fmt.Errorf("input has %d messages, batch limit is %d (use --limit)", len(raws), maxItems)
					}
					report, err = p.Coordinator.ProcessBatch(runCtx, raws)
				default:
					path := strings.TrimSpace(mailboxPath)
					if path == "" {
						path = strings.TrimSpace(cfg.Batch.Mailbox)
					}
					if path == "" {
						return errors.New("no input: pass --input, --mailbox, or set batch.mailbox in the config")
					}
					box, openErr := mailbox.Open(path)
					if openErr != nil {
						return openErr
					}
					if limit <= 0 {
						limit = cfg.Batch.MailboxLimit
					}
					report, err = p.Coordinator.ProcessMailbox(runCtx, box, limit)
				}
				if err != nil {
					return err
				}
				return printReport(cmd, ctx.jsonOutput(), report)
			})
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Message source: JSON file, .eml file, maildir, or - for stdin")
	cmd.Flags().StringVarP(&mailboxPath, "mailbox", "m", "", "Mailbox to read the newest messages from")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of messages to read")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override batch concurrency")
	return cmd
}

func readInput(ctx context.Context, stdin io.Reader, path string, limit int) ([]message.Raw, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raws, err := mailbox.DecodeJSON(data)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(raws) > limit {
			raws = raws[:limit]
		}
		return raws, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	box, err := mailbox.Open(expanded)
	if err != nil {
		return nil, err
	}
	return box.ListRecentMessages(ctx, limit)
}

func printReport(cmd *cobra.Command, asJSON bool, report workflow.Report) error {
	result := api.FromReport(report)
	if asJSON {
		return writeJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	if len(result.Items) > 0 {
		rows := make([][]string, 0, len(result.Items))
		for _, item := range result.Items {
			rows = append(rows, itemRow(item))
		}
		fmt.Fprintln(out, renderTable(itemHeaders, rows, nil))
	}
	fmt.Fprintf(out, "Batch %s: %d succeeded, %d failed, %d skipped in %s\n",
		result.BatchID, result.Succeeded, result.Failed, result.Skipped, report.Duration().Round(time.Millisecond))
	return nil
}

var itemHeaders = []string{"Message", "Status", "Stage", "Script", "Audio", "Result"}

func itemRow(item api.ItemResult) []string {
	detail := item.Error
	if item.ErrorKind != "" {
		detail = item.ErrorKind + ": " + item.Error
	}
	if item.Artifact != nil {
		detail = item.Artifact.Locator
	}
	return []string{
		item.MessageID,
		item.Status,
		item.StageReached,
		item.ScriptOrigin,
		item.AudioOrigin,
		detail,
	}
}
