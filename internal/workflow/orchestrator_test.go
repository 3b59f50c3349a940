package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailreel/internal/logging"
	"mailreel/internal/message"
	"mailreel/internal/narration"
	"mailreel/internal/script"
	"mailreel/internal/services"
	"mailreel/internal/stage"
	"mailreel/internal/store"
	"mailreel/internal/workflow"
)

func TestProcessEmptyMessageUsesPlaceholders(t *testing.T) {
	h := newHarness(t)

	outcome := h.orchestrator().Process(context.Background(), message.Raw{})
	require.True(t, outcome.Succeeded(), outcome.Error)
	assert.NotEmpty(t, outcome.MessageID)
	assert.Equal(t, stage.Fallback, outcome.ScriptOrigin)
	assert.Equal(t, 0, h.generator.Calls())
}

func TestProcessDegradesWhenServicesFail(t *testing.T) {
	h := newHarness(t)
	h.generator.err = services.Wrap(services.ErrTransient, "script", "generate", "rate limited", nil)
	h.speech.err = errors.New("speech offline")

	outcome := h.orchestrator().Process(context.Background(), rawMessage("m1", "Status"))
	require.True(t, outcome.Succeeded(), outcome.Error)
	assert.Equal(t, stage.Fallback, outcome.ScriptOrigin)
	assert.Equal(t, stage.Fallback, outcome.AudioOrigin)
	assert.Equal(t, 3, h.generator.Calls())
}

func TestProcessCancelledBeforeStart(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := h.orchestrator().Process(ctx, rawMessage("m1", "Late"))
	assert.Equal(t, workflow.StatusFailed, outcome.Status)
	assert.Equal(t, workflow.KindCancelled, outcome.ErrorKind)
	assert.Equal(t, stage.Normalize, outcome.StageReached)
	assert.Equal(t, "m1", outcome.MessageID)
	assert.Equal(t, "batch cancelled before normalize stage started", outcome.Error)
}

// cancellingScripter cancels the batch while its stage runs; the stage
// itself still completes.
type cancellingScripter struct {
	cancel context.CancelFunc
}

func (s cancellingScripter) Synthesize(ctx context.Context, msg message.Canonical) script.Script {
	s.cancel()
	if ctx.Err() != nil {
		return script.Script{MessageID: msg.ID, Text: "stage context was cancelled"}
	}
	return script.Script{MessageID: msg.ID, Text: "Narration survives cancellation.", GeneratedBy: stage.Primary}
}

type recordingNarrator struct {
	calls int
}

func (n *recordingNarrator) Render(_ context.Context, s script.Script) narration.Asset {
	n.calls++
	return narration.Asset{MessageID: s.MessageID}
}

func TestProcessStopsAtNextStageBoundaryAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	narrator := &recordingNarrator{}
	orch := workflow.NewOrchestrator(workflow.Stages{
		Scripter:  cancellingScripter{cancel: cancel},
		Narrator:  narrator,
		Assembler: panickingAssembler{},
	}, workflow.Timeouts{}, nil, logging.NewNop())

	outcome := orch.Process(ctx, rawMessage("m1", "Cancel mid-flight"))
	assert.Equal(t, workflow.KindCancelled, outcome.ErrorKind)
	assert.Equal(t, stage.Script, outcome.StageReached)
	assert.Equal(t, "batch cancelled before audio stage started", outcome.Error)
	assert.Zero(t, narrator.calls)
}

type panickingAssembler struct{}

func (panickingAssembler) Assemble(context.Context, narration.Asset, message.Canonical) (store.Artifact, error) {
	panic("muxer exploded")
}

func TestProcessRecoversStagePanic(t *testing.T) {
	orch := workflow.NewOrchestrator(workflow.Stages{
		Scripter:  script.New(nil, script.Config{}, logging.NewNop()),
		Narrator:  &recordingNarrator{},
		Assembler: panickingAssembler{},
	}, workflow.Timeouts{}, nil, logging.NewNop())

	outcome := orch.Process(context.Background(), rawMessage("m1", "Panic"))
	assert.Equal(t, workflow.StatusFailed, outcome.Status)
	assert.Equal(t, workflow.KindInternal, outcome.ErrorKind)
	assert.Equal(t, stage.Assemble, outcome.StageReached)
	assert.Equal(t, "m1", outcome.MessageID)
	assert.True(t, strings.Contains(outcome.Error, "muxer exploded"))
}

func TestReportDuration(t *testing.T) {
	report := workflow.Report{StartedAt: fixedNow, FinishedAt: fixedNow.Add(90_000_000_000)}
	assert.Equal(t, "1m30s", report.Duration().String())
	assert.Zero(t, workflow.Report{StartedAt: fixedNow}.Duration())
}
