package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mailreel/internal/logging"
	"mailreel/internal/mailbox"
	"mailreel/internal/message"
	"mailreel/internal/metrics"
	"mailreel/internal/notifications"
	"mailreel/internal/services"
	"mailreel/internal/stage"
	"mailreel/internal/store"
)

const (
	defaultConcurrency = 3
	persistTimeout     = 30 * time.Second
)

// Processor converts one raw message into an outcome.
type Processor interface {
	Process(ctx context.Context, raw message.Raw) Outcome
}

// CoordinatorConfig tunes batch execution.
type CoordinatorConfig struct {
	Concurrency int
	// Deadline bounds a whole batch. Zero leaves the caller's context as is.
	Deadline time.Duration
	// Metrics receives item and batch counters. Nil disables them.
	Metrics *metrics.Collector
}

// Coordinator runs batches of messages through a Processor.
type Coordinator struct {
	processor  Processor
	store      Store
	normalizer message.Normalizer
	notifier   notifications.Service
	logger     *slog.Logger
	cfg        CoordinatorConfig
	now        func() time.Time
}

// NewCoordinator constructs a Coordinator. The normalizer must match the one
// the processor uses so de-duplication sees the same ids.
func NewCoordinator(processor Processor, st Store, normalizer message.Normalizer, notifier notifications.Service, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Coordinator{
		processor:  processor,
		store:      st,
		normalizer: normalizer,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "coordinator"),
		cfg:        cfg,
		now:        time.Now,
	}
}

type pendingItem struct {
	id  string
	raw message.Raw
}

// ProcessBatch processes raws with de-duplication and bounded concurrency.
// The only error it returns is ErrDedupUnavailable; every per-item failure is
// reported in the Report.
func (c *Coordinator) ProcessBatch(ctx context.Context, raws []message.Raw) (Report, error) {
	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	logger := logging.WithContext(ctx, c.logger)

	report := Report{BatchID: batchID, StartedAt: c.now(), Outcomes: make([]Outcome, 0, len(raws))}

	known, err := c.store.ListKnownIDs(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "batch aborted", "dedup_unavailable", logging.Error(err))
		return Report{}, fmt.Errorf("%w: %w", ErrDedupUnavailable, err)
	}

	pending := make([]pendingItem, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		id := c.normalizer.Normalize(raw).ID
		if _, ok := known[id]; ok {
			report.Skipped++
			continue
		}
		if _, ok := seen[id]; ok {
			report.Skipped++
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, pendingItem{id: id, raw: raw})
	}

	logger.Info(
		"batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("received", len(raws)),
		logging.Int("pending", len(pending)),
		logging.Int("skipped", report.Skipped),
		logging.Int("concurrency", c.cfg.Concurrency),
	)

	if c.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Deadline)
		defer cancel()
	}

	var mu sync.Mutex
	record := func(outcome Outcome) {
		c.observe(outcome)
		mu.Lock()
		defer mu.Unlock()
		report.Outcomes = append(report.Outcomes, outcome)
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, item := range pending {
		if ctx.Err() != nil {
			for _, rest := range pending[i:] {
				record(cancelledOutcome(rest.id, stage.Normalize, stage.Normalize))
			}
			break
		}
		g.Go(func() error {
			record(c.processItem(ctx, batchID, item))
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = c.now()
	for _, outcome := range report.Outcomes {
		if outcome.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.Total = len(report.Outcomes)
	c.cfg.Metrics.Add(metrics.CounterBatches, 1)
	c.cfg.Metrics.Add(metrics.CounterItemsSkipped, int64(report.Skipped))
	c.cfg.Metrics.SetGauge(metrics.GaugeLastBatchSeconds, report.Duration().Seconds())

	logger.Info(
		"batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("total", report.Total),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Duration("elapsed", report.Duration()),
	)
	if err := c.notifier.Publish(context.WithoutCancel(ctx), notifications.EventBatchCompleted, notifications.Payload{
		"batchId":   batchID,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"duration":  report.Duration(),
	}); err != nil {
		logger.Warn("batch notification failed", logging.String(logging.FieldEventType, "notification_failed"), logging.Error(err))
	}
	return report, nil
}

// ProcessMessage processes a single message. A message that already has an
// artifact is reported as succeeded with the stored artifact and is not
// re-rendered.
func (c *Coordinator) ProcessMessage(ctx context.Context, raw message.Raw) (Outcome, error) {
	id := c.normalizer.Normalize(raw).ID
	exists, err := c.store.Exists(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrDedupUnavailable, err)
	}
	if exists {
		c.cfg.Metrics.Add(metrics.CounterItemsSkipped, 1)
		return Outcome{MessageID: id, Status: StatusSucceeded, StageReached: stage.Assemble}, nil
	}
	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	outcome := c.processItem(ctx, batchID, pendingItem{id: id, raw: raw})
	c.observe(outcome)
	return outcome, nil
}

// ProcessMailbox fetches up to limit recent messages and processes them as
// one batch.
func (c *Coordinator) ProcessMailbox(ctx context.Context, box mailbox.Mailbox, limit int) (Report, error) {
	raws, err := box.ListRecentMessages(ctx, limit)
	if err != nil {
		return Report{}, fmt.Errorf("list mailbox messages: %w", err)
	}
	return c.ProcessBatch(ctx, raws)
}

func (c *Coordinator) processItem(ctx context.Context, batchID string, item pendingItem) (outcome Outcome) {
	itemCtx := services.WithMessageID(ctx, item.id)
	logger := logging.WithContext(itemCtx, c.logger)
	c.cfg.Metrics.AddGauge(metrics.GaugeItemsInFlight, 1)
	defer c.cfg.Metrics.AddGauge(metrics.GaugeItemsInFlight, -1)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "item panicked", "item_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = Outcome{
				MessageID:    item.id,
				Status:       StatusFailed,
				ErrorKind:    KindInternal,
				StageReached: stage.Normalize,
				Error:        fmt.Sprintf("panic: %v", r),
			}
			c.recordFailure(itemCtx, logger, batchID, outcome)
		}
	}()

	outcome = c.processor.Process(itemCtx, item.raw)
	if outcome.MessageID == "" {
		outcome.MessageID = item.id
	}

	if outcome.Succeeded() && outcome.Artifact != nil {
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(itemCtx), persistTimeout)
		err := c.store.UpsertArtifact(persistCtx, *outcome.Artifact)
		cancel()
		if err != nil {
			logging.ErrorWithContext(logger, "artifact persist failed", "artifact_persist_failed", logging.Error(err))
			outcome.Status = StatusFailed
			outcome.ErrorKind = KindTransient
			outcome.StageReached = stage.Assemble
			outcome.Error = fmt.Sprintf("persist artifact: %v", err)
			outcome.Artifact = nil
			c.publishFailure(itemCtx, logger, outcome)
		}
	}

	if !outcome.Succeeded() {
		c.recordFailure(itemCtx, logger, batchID, outcome)
		return outcome
	}
	locator := ""
	if outcome.Artifact != nil {
		locator = outcome.Artifact.Locator
	}
	logger.Info(
		"item succeeded",
		logging.String(logging.FieldEventType, "item_succeeded"),
		logging.String("locator", locator),
		logging.String("script_origin", string(outcome.ScriptOrigin)),
		logging.String("audio_origin", string(outcome.AudioOrigin)),
	)
	return outcome
}

func (c *Coordinator) observe(outcome Outcome) {
	switch {
	case outcome.Succeeded():
		c.cfg.Metrics.Add(metrics.CounterItemsSucceeded, 1)
	case outcome.ErrorKind == KindCancelled:
		c.cfg.Metrics.Add(metrics.CounterItemsCancelled, 1)
	default:
		c.cfg.Metrics.Add(metrics.CounterItemsFailed, 1)
	}
}

// recordFailure persists a failed outcome. Cancelled items are not failures
// of the message itself and are left out of the failure log.
func (c *Coordinator) recordFailure(ctx context.Context, logger *slog.Logger, batchID string, outcome Outcome) {
	if outcome.ErrorKind == KindCancelled {
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := c.store.RecordFailure(persistCtx, store.Failure{
		MessageID: outcome.MessageID,
		BatchID:   batchID,
		Stage:     string(outcome.StageReached),
		ErrorKind: outcome.ErrorKind,
		Error:     outcome.Error,
		CreatedAt: c.now(),
	}); err != nil {
		logger.Warn("failure record not persisted", logging.String(logging.FieldEventType, "failure_record_failed"), logging.Error(err))
	}
}

func (c *Coordinator) publishFailure(ctx context.Context, logger *slog.Logger, outcome Outcome) {
	if err := c.notifier.Publish(context.WithoutCancel(ctx), notifications.EventItemFailed, notifications.Payload{
		"messageId": outcome.MessageID,
		"stage":     string(outcome.StageReached),
		"errorKind": outcome.ErrorKind,
		"error":     outcome.Error,
	}); err != nil {
		logger.Debug("item failure notification failed", logging.Error(err))
	}
}
