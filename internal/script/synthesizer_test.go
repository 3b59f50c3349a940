package script

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"mailreel/internal/logging"
	"mailreel/internal/message"
	"mailreel/internal/services"
	"mailreel/internal/stage"
)

type reply struct {
	text string
	err  error
}

type stubGenerator struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	prompts []string
	block   bool
}

func (g *stubGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, user)
	idx := g.calls - 1
	block := g.block
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if idx >= len(g.replies) {
		return "", services.Wrap(services.ErrTransient, "stub", "generate", "no reply queued", nil)
	}
	return g.replies[idx].text, g.replies[idx].err
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func sampleMessage() message.Canonical {
	return message.Canonical{
		ID:         "m1",
		Sender:     "boss@x",
		SenderName: "Boss",
		Subject:    "Meeting moved",
		Body:       "Meeting moved to 3pm.",
		ReceivedAt: time.Now(),
	}
}

func newSynth(gen TextGenerator, cfg Config, rec *sleepRecorder) *Synthesizer {
	return New(gen, cfg, logging.NewNop(), WithSleeper(rec.sleep))
}

func TestSynthesizeAcceptsFirstGoodReply(t *testing.T) {
	gen := &stubGenerator{replies: []reply{{text: `"Boss says the meeting moved to 3pm!"`}}}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{}, rec).Synthesize(context.Background(), sampleMessage())

	if got.GeneratedBy != stage.Primary {
		t.Fatalf("expected primary, got %s", got.GeneratedBy)
	}
	if got.Text != "Boss says the meeting moved to 3pm!" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Attempts != 1 || gen.calls != 1 {
		t.Fatalf("expected single attempt, got attempts=%d calls=%d", got.Attempts, gen.calls)
	}
	if got.MessageID != "m1" {
		t.Fatalf("unexpected message id %q", got.MessageID)
	}
	if !strings.Contains(gen.prompts[0], "Subject: Meeting moved") {
		t.Fatalf("prompt missing subject: %q", gen.prompts[0])
	}
}

func TestSynthesizeRetriesTransientWithBackoff(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "stub", "generate", "rate limited", nil)
	gen := &stubGenerator{replies: []reply{{err: transient}, {err: transient}, {text: "Third time lucky for this email."}}}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{BaseDelay: time.Second, MaxDelay: 8 * time.Second}, rec).
		Synthesize(context.Background(), sampleMessage())

	if got.GeneratedBy != stage.Primary || got.Attempts != 3 {
		t.Fatalf("unexpected result %#v", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delay %d: got %v want %v", i, rec.delays[i], want[i])
		}
	}
}

type hintedError struct{ after time.Duration }

func (e hintedError) Error() string                 { return "429 too many requests" }
func (e hintedError) RetryAfterHint() time.Duration { return e.after }

func TestSynthesizeHonoursRetryAfterCapped(t *testing.T) {
	hinted := services.Wrap(services.ErrTransient, "stub", "generate", "", hintedError{after: time.Minute})
	gen := &stubGenerator{replies: []reply{{err: hinted}, {text: "Back after the pause."}}}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{BaseDelay: time.Second, MaxDelay: 8 * time.Second}, rec).
		Synthesize(context.Background(), sampleMessage())

	if got.GeneratedBy != stage.Primary {
		t.Fatalf("expected primary, got %#v", got)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 8*time.Second {
		t.Fatalf("expected capped retry-after delay, got %v", rec.delays)
	}
}

func TestSynthesizeStopsOnPermanentError(t *testing.T) {
	permanent := services.Wrap(services.ErrValidation, "stub", "generate", "bad request", nil)
	gen := &stubGenerator{replies: []reply{{err: permanent}}}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{}, rec).Synthesize(context.Background(), sampleMessage())

	if got.GeneratedBy != stage.Fallback {
		t.Fatalf("expected fallback, got %s", got.GeneratedBy)
	}
	if gen.calls != 1 || got.Attempts != 1 {
		t.Fatalf("expected one call, got %d", gen.calls)
	}
	if got.Text != "New message from Boss: Meeting moved" {
		t.Fatalf("unexpected fallback %q", got.Text)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", rec.delays)
	}
}

func TestSynthesizeFallsBackAfterExhaustingAttempts(t *testing.T) {
	gen := &stubGenerator{replies: []reply{{text: "hey"}, {text: "  "}, {text: "no"}}}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{MaxAttempts: 3}, rec).Synthesize(context.Background(), sampleMessage())

	if got.GeneratedBy != stage.Fallback || got.Attempts != 3 || gen.calls != 3 {
		t.Fatalf("unexpected result %#v (calls=%d)", got, gen.calls)
	}
}

func TestSynthesizeAttemptTimeout(t *testing.T) {
	gen := &stubGenerator{block: true}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{MaxAttempts: 2, AttemptTimeout: 20 * time.Millisecond}, rec).
		Synthesize(context.Background(), sampleMessage())

	if got.GeneratedBy != stage.Fallback {
		t.Fatalf("expected fallback after timeouts, got %#v", got)
	}
	if gen.calls != 2 {
		t.Fatalf("expected timeouts to be retried, got %d calls", gen.calls)
	}
}

func TestSynthesizeEmptyMessageSkipsGenerator(t *testing.T) {
	gen := &stubGenerator{replies: []reply{{text: "should not be used"}}}
	rec := &sleepRecorder{}
	msg := message.Normalize(message.Raw{"id": "m9", "from": "Jane Doe <jane@x>"})
	got := newSynth(gen, Config{}, rec).Synthesize(context.Background(), msg)

	if gen.calls != 0 {
		t.Fatalf("expected no generator calls, got %d", gen.calls)
	}
	if got.Text != "New message from Jane Doe" || got.GeneratedBy != stage.Fallback || got.Attempts != 0 {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestSynthesizeOutputBounded(t *testing.T) {
	long := strings.Repeat("This narration is far too long. ", 20)
	gen := &stubGenerator{replies: []reply{{text: long}}}
	rec := &sleepRecorder{}
	got := newSynth(gen, Config{}, rec).Synthesize(context.Background(), sampleMessage())

	if n := utf8.RuneCountInString(got.Text); n == 0 || n > MaxChars {
		t.Fatalf("expected 1..%d runes, got %d", MaxChars, n)
	}
	if !strings.HasSuffix(got.Text, "...") {
		t.Fatalf("expected ellipsis, got %q", got.Text)
	}
}

func TestFallbackBounded(t *testing.T) {
	msg := sampleMessage()
	msg.Subject = strings.Repeat("Quarterly numbers ", 30)
	got := Fallback(msg, MaxChars)
	if n := utf8.RuneCountInString(got); n > MaxChars {
		t.Fatalf("fallback exceeds bound: %d", n)
	}
	if !strings.HasPrefix(got, "New message from Boss: ") {
		t.Fatalf("unexpected fallback prefix %q", got)
	}
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		`"Hello there"`:            "Hello there",
		"“Curly quoted text”":      "Curly quoted text",
		"  spaced \n\n  out  ":     "spaced out",
		`"'double wrapped'"`:       "double wrapped",
		`She said "hi" to me`:      `She said "hi" to me`,
	}
	for in, want := range tests {
		if got := Clean(in, MaxChars); got != want {
			t.Fatalf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	s := New(nil, Config{BaseDelay: time.Second, MaxDelay: 8 * time.Second}, nil)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := s.backoffDelay(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestNilGeneratorUsesFallback(t *testing.T) {
	got := New(nil, Config{}, nil).Synthesize(context.Background(), sampleMessage())
	if got.GeneratedBy != stage.Fallback {
		t.Fatalf("expected fallback, got %#v", got)
	}
}

func TestRetryStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(nil, Config{}, nil)
	if _, retry := s.retryDelay(ctx, errors.New("x"), 1); retry {
		t.Fatal("expected no retry once the context is done")
	}
}
