package workflow_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"mailreel/internal/assembly"
	"mailreel/internal/config"
	"mailreel/internal/logging"
	"mailreel/internal/message"
	"mailreel/internal/metrics"
	"mailreel/internal/narration"
	"mailreel/internal/notifications"
	"mailreel/internal/script"
	"mailreel/internal/store"
	"mailreel/internal/testsupport"
	"mailreel/internal/workflow"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(context.Context, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, g.err
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSpeech struct {
	err error
}

func (s *fakeSpeech) Synthesize(context.Context, string, string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3-narration"), nil
}

// fakeMuxer writes a placeholder clip holding the overlay subject. failFor maps a message id fragment of
// the output path to the error returned for it; onMux runs after every
// successful call with the 1-based call number.
type fakeMuxer struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]error
	onMux   func(call int)
}

func (m *fakeMuxer) Mux(_ context.Context, req assembly.MuxRequest) error {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	for fragment, err := range m.failFor {
		if strings.Contains(req.Output, "-"+fragment+"-") {
			return err
		}
	}
	if err := os.WriteFile(req.Output, []byte("mp4:"+req.Overlay.Subject), 0o644); err != nil {
		return err
	}
	if m.onMux != nil {
		m.onMux(call)
	}
	return nil
}

func (m *fakeMuxer) Thumbnail(_ context.Context, _ string, out string, _ time.Duration) error {
	return os.WriteFile(out, []byte("jpg"), 0o644)
}

func (m *fakeMuxer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeProbe struct{}

func (fakeProbe) Duration(context.Context, string) (time.Duration, error) {
	return 12 * time.Second, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) last(event notifications.Event) notifications.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == event {
			return r.payloads[i]
		}
	}
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	cfg         *config.Config
	store       *store.Store
	generator   *fakeGenerator
	speech      *fakeSpeech
	muxer       *fakeMuxer
	notifier    *recordingNotifier
	metrics     *metrics.Collector
	normalizer  message.Normalizer
	coordinator *workflow.Coordinator
}

type harnessOption func(*harness, *workflow.CoordinatorConfig)

func withConcurrency(n int) harnessOption {
	return func(_ *harness, cfg *workflow.CoordinatorConfig) { cfg.Concurrency = n }
}

func withMetrics() harnessOption {
	return func(h *harness, cfg *workflow.CoordinatorConfig) {
		h.metrics = metrics.New()
		cfg.Metrics = h.metrics
	}
}

func withDeadline(d time.Duration) harnessOption {
	return func(_ *harness, cfg *workflow.CoordinatorConfig) { cfg.Deadline = d }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	return newHarnessWith(t, nil, opts...)
}

// newHarnessWith applies cfgOpts on top of a config with default audio.
func newHarnessWith(t *testing.T, cfgOpts []testsupport.ConfigOption, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithDefaultAudio()}, cfgOpts...)...)
	h := &harness{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		generator:  &fakeGenerator{text: "Alice wants to meet tomorrow at 10am."},
		speech:     &fakeSpeech{},
		muxer:      &fakeMuxer{failFor: map[string]error{}},
		notifier:   &recordingNotifier{},
		normalizer: message.Normalizer{Now: func() time.Time { return fixedNow }},
	}
	coordCfg := workflow.CoordinatorConfig{Concurrency: 3}
	for _, opt := range opts {
		opt(h, &coordCfg)
	}
	h.coordinator = workflow.NewCoordinator(h.orchestrator(), h.store, h.normalizer, h.notifier, coordCfg, logging.NewNop())
	return h
}

func (h *harness) orchestrator() *workflow.Orchestrator {
	logger := logging.NewNop()
	noSleep := script.WithSleeper(func(context.Context, time.Duration) error { return nil })
	return workflow.NewOrchestrator(workflow.Stages{
		Normalizer: h.normalizer,
		Scripter:   script.New(h.generator, script.Config{MaxAttempts: 3, AttemptTimeout: time.Second}, logger, noSleep),
		Narrator:   narration.New(h.speech, narration.ConfigFromSettings(h.cfg), logger),
		Assembler:  assembly.New(assembly.ConfigFromSettings(h.cfg), h.muxer, fakeProbe{}, logger),
	}, workflow.TimeoutsFromSettings(h.cfg), h.notifier, logger, workflow.WithStageMetrics(h.metrics))
}

func rawMessage(id, subject string) message.Raw {
	return message.Raw{
		"id":        id,
		"from":      "Alice <alice@example.com>",
		"subject":   subject,
		"body":      "Let's meet at 10am to go over the roadmap.",
		"timestamp": "2024-01-01T10:00:00Z",
	}
}

func rawMessages(n int) []message.Raw {
	raws := make([]message.Raw, 0, n)
	for i := range n {
		raws = append(raws, rawMessage("msg"+string(rune('a'+i)), "Update"))
	}
	return raws
}

func outcomeFor(report workflow.Report, id string) (workflow.Outcome, bool) {
	for _, outcome := range report.Outcomes {
		if outcome.MessageID == id {
			return outcome, true
		}
	}
	return workflow.Outcome{}, false
}

// memoryStore is a Store with injectable failures.
type memoryStore struct {
	mu        sync.Mutex
	artifacts map[string]store.Artifact
	failures  []store.Failure
	listErr   error
	upsertErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{artifacts: map[string]store.Artifact{}}
}

func (s *memoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.artifacts[id]
	return ok, nil
}

func (s *memoryStore) UpsertArtifact(_ context.Context, artifact store.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if _, ok := s.artifacts[artifact.MessageID]; !ok {
		s.artifacts[artifact.MessageID] = artifact
	}
	return nil
}

func (s *memoryStore) ListKnownIDs(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make(map[string]struct{}, len(s.artifacts))
	for id := range s.artifacts {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *memoryStore) RecordFailure(_ context.Context, failure store.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return nil
}

var errStoreDown = errors.New("database is locked")
