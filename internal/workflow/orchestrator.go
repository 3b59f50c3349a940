package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"mailreel/internal/assembly"
	"mailreel/internal/config"
	"mailreel/internal/logging"
	"mailreel/internal/message"
	"mailreel/internal/metrics"
	"mailreel/internal/narration"
	"mailreel/internal/notifications"
	"mailreel/internal/script"
	"mailreel/internal/services"
	"mailreel/internal/stage"
	"mailreel/internal/stageexec"
	"mailreel/internal/store"
)

// Scripter produces narration text. It must not fail.
type Scripter interface {
	Synthesize(ctx context.Context, msg message.Canonical) script.Script
}

// Narrator renders narration audio. It must not fail.
type Narrator interface {
	Render(ctx context.Context, s script.Script) narration.Asset
}

// Assembler renders the final clip. It is the only stage that can fail.
type Assembler interface {
	Assemble(ctx context.Context, asset narration.Asset, msg message.Canonical) (store.Artifact, error)
}

// Stages bundles the stage implementations.
type Stages struct {
	Normalizer message.Normalizer
	Scripter   Scripter
	Narrator   Narrator
	Assembler  Assembler
}

// Timeouts bound each detached stage run.
type Timeouts struct {
	Script   time.Duration
	Audio    time.Duration
	Assemble time.Duration
}

// TimeoutsFromSettings sizes stage timeouts to cover each stage's own policy.
func TimeoutsFromSettings(cfg *config.Config) Timeouts {
	attempts := time.Duration(max(cfg.Script.MaxAttempts, 1))
	backoff := time.Duration(cfg.Script.MaxBackoffSeconds) * time.Second
	mux := time.Duration(cfg.Video.MuxTimeoutSeconds) * time.Second
	return Timeouts{
		Script:   attempts*cfg.AttemptTimeout() + attempts*backoff + 5*time.Second,
		Audio:    time.Duration(cfg.Speech.TimeoutSeconds)*time.Second + 5*time.Second,
		Assemble: 2*mux + 30*time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Script <= 0 {
		t.Script = 90 * time.Second
	}
	if t.Audio <= 0 {
		t.Audio = 35 * time.Second
	}
	if t.Assemble <= 0 {
		t.Assemble = 10 * time.Minute
	}
	return t
}

// Orchestrator runs one message through the stage sequence.
type Orchestrator struct {
	stages   Stages
	timeouts Timeouts
	notifier notifications.Service
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithStageMetrics records every stage run in collector.
func WithStageMetrics(collector *metrics.Collector) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = collector }
}

// NewOrchestrator constructs an Orchestrator. A nil notifier disables
// failure notifications.
func NewOrchestrator(stages Stages, timeouts Timeouts, notifier notifications.Service, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		stages:   stages,
		timeouts: timeouts.withDefaults(),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process converts raw into a clip. It never returns an error: every
// failure is described by the returned Outcome.
func (o *Orchestrator) Process(ctx context.Context, raw message.Raw) (outcome Outcome) {
	reached := stage.Normalize
	var msg message.Canonical

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logging.WithContext(ctx, o.logger), "stage panicked", "stage_panic",
				logging.String(logging.FieldStage, string(reached)),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = Outcome{
				MessageID:    msg.ID,
				Status:       StatusFailed,
				ErrorKind:    KindInternal,
				StageReached: reached,
				Error:        fmt.Sprintf("panic in %s stage: %v", reached, r),
			}
		}
	}()

	if ctx.Err() != nil {
		return cancelledOutcome(o.stages.Normalizer.Normalize(raw).ID, reached, stage.Normalize)
	}
	msg, _ = stageexec.Run(ctx, o.runOptions(stage.Normalize), func(context.Context) (message.Canonical, error) {
		return o.stages.Normalizer.Normalize(raw), nil
	})
	ctx = services.WithMessageID(ctx, msg.ID)

	if ctx.Err() != nil {
		return cancelledOutcome(msg.ID, reached, stage.Script)
	}
	reached = stage.Script
	narrationScript, _ := runDetached(ctx, o, stage.Script, o.timeouts.Script, func(stageCtx context.Context) (script.Script, error) {
		return o.stages.Scripter.Synthesize(stageCtx, msg), nil
	})

	if ctx.Err() != nil {
		return cancelledOutcome(msg.ID, reached, stage.Audio)
	}
	reached = stage.Audio
	asset, _ := runDetached(ctx, o, stage.Audio, o.timeouts.Audio, func(stageCtx context.Context) (narration.Asset, error) {
		return o.stages.Narrator.Render(stageCtx, narrationScript), nil
	})

	if ctx.Err() != nil {
		return cancelledOutcome(msg.ID, reached, stage.Assemble)
	}
	reached = stage.Assemble
	artifact, err := runDetached(ctx, o, stage.Assemble, o.timeouts.Assemble, func(stageCtx context.Context) (store.Artifact, error) {
		return o.stages.Assembler.Assemble(stageCtx, asset, msg)
	})

	outcome = Outcome{
		MessageID:    msg.ID,
		StageReached: stage.Assemble,
		ScriptOrigin: narrationScript.GeneratedBy,
		AudioOrigin:  asset.GeneratedBy,
	}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.ErrorKind = errorKind(err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Status = StatusSucceeded
	outcome.Artifact = &artifact
	return outcome
}

// runDetached runs fn as stage name on a context that ignores batch
// cancellation but is bounded by timeout.
func runDetached[T any](ctx context.Context, o *Orchestrator, name stage.Name, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	stageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return stageexec.Run(stageCtx, o.runOptions(name), fn)
}

func (o *Orchestrator) runOptions(name stage.Name) stageexec.Options {
	return stageexec.Options{Logger: o.logger, Notifier: o.notifier, Metrics: o.metrics, Stage: name}
}

// cancelledOutcome reports an item stopped at a stage boundary: reached is the
// last stage entered and next the stage that was never started.
func cancelledOutcome(messageID string, reached, next stage.Name) Outcome {
	return Outcome{
		MessageID:    messageID,
		Status:       StatusFailed,
		ErrorKind:    KindCancelled,
		StageReached: reached,
		Error:        "batch cancelled before " + string(next) + " stage started",
	}
}

func errorKind(err error) string {
	if assembleErr, ok := assembly.AsError(err); ok {
		return string(assembleErr.Kind)
	}
	return string(services.Classify(err))
}
