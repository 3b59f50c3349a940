package stageexec_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mailreel/internal/logging"
	"mailreel/internal/metrics"
	"mailreel/internal/notifications"
	"mailreel/internal/services"
	"mailreel/internal/stage"
	"mailreel/internal/stageexec"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
	return nil
}

func TestRunStampsStageAndReturnsResult(t *testing.T) {
	notifier := &recordingNotifier{}
	opts := stageexec.Options{Logger: logging.NewNop(), Notifier: notifier, Stage: stage.Script}

	got, err := stageexec.Run(context.Background(), opts, func(ctx context.Context) (string, error) {
		name, _ := services.StageFromContext(ctx)
		return name, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "script" {
		t.Fatalf("expected stage on context, got %q", got)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("expected no notifications on success, got %v", notifier.events)
	}
}

func TestRunPublishesFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	opts := stageexec.Options{Logger: logging.NewNop(), Notifier: notifier, Stage: stage.Assemble}
	ctx := services.WithMessageID(context.Background(), "m9")
	boom := services.Wrap(services.ErrTimeout, "assemble", "mux", "ffmpeg timed out", nil)

	_, err := stageexec.Run(ctx, opts, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected stage error to propagate, got %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventItemFailed {
		t.Fatalf("expected item_failed notification, got %v", notifier.events)
	}
	if notifier.last["messageId"] != "m9" || notifier.last["errorKind"] != "transient" {
		t.Fatalf("unexpected payload: %v", notifier.last)
	}
}

type originResult stage.Origin

func (r originResult) Origin() stage.Origin { return stage.Origin(r) }

func TestRunRecordsStageMetrics(t *testing.T) {
	collector := metrics.New()
	run := func(name stage.Name, result originResult, err error) {
		opts := stageexec.Options{Logger: logging.NewNop(), Metrics: collector, Stage: name}
		_, _ = stageexec.Run(context.Background(), opts, func(context.Context) (originResult, error) {
			return result, err
		})
	}
	run(stage.Script, originResult(stage.Primary), nil)
	run(stage.Script, originResult(stage.Fallback), nil)
	run(stage.Audio, originResult(stage.Fallback), nil)
	run(stage.Assemble, "", errors.New("mux failed"))

	snap := collector.Snapshot()
	if got := snap.Stages["script"]; got.Succeeded != 1 || got.Fallback != 1 || got.DurationMS.Count != 2 {
		t.Fatalf("unexpected script metrics: %+v", got)
	}
	if got := snap.Stages["audio"]; got.Fallback != 1 || got.Succeeded != 0 {
		t.Fatalf("unexpected audio metrics: %+v", got)
	}
	if got := snap.Stages["assemble"]; got.Failed != 1 {
		t.Fatalf("unexpected assemble metrics: %+v", got)
	}
}
