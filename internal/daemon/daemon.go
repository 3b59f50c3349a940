package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mailreel/internal/api"
	"mailreel/internal/config"
	"mailreel/internal/logging"
	"mailreel/internal/mailbox"
	"mailreel/internal/metrics"
	"mailreel/internal/message"
	"mailreel/internal/preflight"
	"mailreel/internal/store"
	"mailreel/internal/workflow"
)

// Processor runs messages through the pipeline.
type Processor interface {
	ProcessBatch(ctx context.Context, raws []message.Raw) (workflow.Report, error)
	ProcessMessage(ctx context.Context, raw message.Raw) (workflow.Outcome, error)
	ProcessMailbox(ctx context.Context, box mailbox.Mailbox, limit int) (workflow.Report, error)
}

// Store is the persistence the daemon reads and closes.
type Store interface {
	api.ArtifactReader
	CheckHealth(ctx context.Context) (store.DatabaseHealth, error)
	Close() error
}

// Daemon coordinates the API server and mailbox polling, and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     Store
	processor Processor
	mailbox   mailbox.Mailbox
	remotes   []preflight.Remote
	metrics   *metrics.Collector

	lockPath string
	lock     *flock.Flock

	batchMu sync.Mutex
	api     *apiServer
	wg      sync.WaitGroup

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	DatabasePath string `json:"databasePath"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress,omitempty"`
	Mailbox      bool   `json:"mailbox"`
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithMailbox enables the poll loop against box.
func WithMailbox(box mailbox.Mailbox) Option {
	return func(d *Daemon) {
		d.mailbox = box
	}
}

// WithRemotes adds provider health checks to /health/pipeline.
func WithRemotes(remotes ...preflight.Remote) Option {
	return func(d *Daemon) {
		d.remotes = append(d.remotes, remotes...)
	}
}

// WithMetrics serves collector's snapshot at /metrics.
func WithMetrics(collector *metrics.Collector) Option {
	return func(d *Daemon) {
		d.metrics = collector
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st Store, processor Processor, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || processor == nil {
		return nil, errors.New("daemon requires config, store, and processor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		processor: processor,
		lockPath:  cfg.LockPath(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the lock, starts the API server, and launches the poll loop
// when a mailbox is configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	lock, err := AcquireLock(d.lockPath)
	if err != nil {
		return err
	}
	d.lock = lock

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel

	if d.mailbox != nil {
		interval := time.Duration(d.cfg.Batch.PollIntervalSeconds) * time.Second
		if interval > 0 {
			d.wg.Add(1)
			go d.pollLoop(runCtx, interval)
		}
	}

	d.running.Store(true)
	d.logger.Info("mailreel daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Bool("mailbox", d.mailbox != nil),
	)
	return nil
}

// Stop stops background work and releases the daemon lock. In-flight
// batches finish first.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	d.batchMu.Lock()
	d.batchMu.Unlock()
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}
	d.running.Store(false)
	d.logger.Info("mailreel daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Mailbox:      d.mailbox != nil,
	}
}

// Metrics returns the current pipeline metrics. Without a collector the
// snapshot is empty.
func (d *Daemon) Metrics() metrics.Snapshot {
	return d.metrics.Snapshot()
}

// PollOnce processes the most recent mailbox messages.
func (d *Daemon) PollOnce(ctx context.Context) (workflow.Report, error) {
	if d.mailbox == nil {
		return workflow.Report{}, errors.New("no mailbox configured")
	}
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	return d.processor.ProcessMailbox(ctx, d.mailbox, d.cfg.Batch.MailboxLimit)
}

// ProcessBatch runs raws as one batch, serialized with other batches.
func (d *Daemon) ProcessBatch(ctx context.Context, raws []message.Raw) (workflow.Report, error) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	return d.processor.ProcessBatch(ctx, raws)
}

// ProcessMessage runs a single message, serialized with batches.
func (d *Daemon) ProcessMessage(ctx context.Context, raw message.Raw) (workflow.Outcome, error) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	return d.processor.ProcessMessage(ctx, raw)
}

// PipelineHealth gathers preflight checks, stage readiness, and store
// diagnostics.
func (d *Daemon) PipelineHealth(ctx context.Context) api.PipelineHealth {
	checks := preflight.RunAll(ctx, d.cfg, d.remotes...)
	health := api.PipelineHealth{
		Ready:  preflight.Ready(checks),
		Stages: api.FromStageHealth(preflight.StageHealth(d.cfg)),
		Checks: checks,
	}
	if dbHealth, err := d.store.CheckHealth(ctx); err != nil {
		health.Ready = false
		health.Database = &api.DatabaseHealth{Path: d.cfg.DatabasePath(), Error: err.Error()}
	} else {
		converted := api.FromDatabaseHealth(dbHealth)
		health.Database = &converted
		if !dbHealth.IntegrityCheck {
			health.Ready = false
		}
	}
	if summary, err := api.NewArtifactService(d.store).Summary(ctx); err == nil {
		health.Summary = &summary
	}
	return health
}

func (d *Daemon) pollLoop(ctx context.Context, interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.pollAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollAndLog(ctx)
		}
	}
}

func (d *Daemon) pollAndLog(ctx context.Context) {
	report, err := d.PollOnce(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "mailbox poll failed", "mailbox_poll_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "new messages wait for the next poll"),
		)
		return
	}
	d.logger.Info("mailbox poll complete",
		logging.String(logging.FieldEventType, "mailbox_poll_complete"),
		logging.String(logging.FieldBatchID, report.BatchID),
		logging.Int("total", report.Total),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
	)
}
