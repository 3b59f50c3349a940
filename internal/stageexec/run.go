package stageexec

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mailreel/internal/logging"
	"mailreel/internal/metrics"
	"mailreel/internal/notifications"
	"mailreel/internal/services"
	"mailreel/internal/stage"
)

// Options controls stage execution logging, metrics, and failure
// notification.
type Options struct {
	Logger   *slog.Logger
	Notifier notifications.Service
	Metrics  *metrics.Collector
	Stage    stage.Name
}

// originReporter is implemented by stage results that may come from a
// fallback.
type originReporter interface {
	Origin() stage.Origin
}

// Run executes fn as the named stage, stamping the stage on the context and
// logging start, completion, and failure with the elapsed time. Every run is
// counted in opts.Metrics; failures are published as item_failed
// notifications.
func Run[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error)) (T, error) {
	stageCtx := services.WithStage(ctx, string(opts.Stage))
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Debug(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
	)
	started := time.Now()

	result, err := fn(stageCtx)
	elapsed := time.Since(started)
	if err != nil {
		opts.Metrics.ObserveStage(opts.Stage, metrics.Failed, elapsed)
		return result, handleFailure(stageCtx, stageLogger, opts, elapsed, err)
	}
	outcome := metrics.Succeeded
	if reporter, ok := any(result).(originReporter); ok && reporter.Origin() == stage.Fallback {
		outcome = metrics.Fallback
	}
	opts.Metrics.ObserveStage(opts.Stage, outcome, elapsed)

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return result, nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, elapsed time.Duration, stageErr error) error {
	kind := services.Classify(stageErr)
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", string(kind)),
		logging.String("error_message", strings.TrimSpace(stageErr.Error())),
		logging.Duration("elapsed", elapsed),
		logging.Error(stageErr),
	)

	if opts.Notifier != nil {
		messageID, _ := services.MessageIDFromContext(ctx)
		if err := opts.Notifier.Publish(ctx, notifications.EventItemFailed, notifications.Payload{
			"messageId": messageID,
			"stage":     string(opts.Stage),
			"errorKind": string(kind),
			"error":     stageErr,
		}); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
	return stageErr
}
