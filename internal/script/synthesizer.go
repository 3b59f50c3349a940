package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailreel/internal/config"
	"mailreel/internal/logging"
	"mailreel/internal/message"
	"mailreel/internal/services"
	"mailreel/internal/stage"
)

const (
	defaultAttempts       = 3
	defaultAttemptTimeout = 20 * time.Second
	defaultBaseDelay      = 1 * time.Second
	defaultMaxDelay       = 8 * time.Second
)

// errRejected marks generated text that failed length validation.
var errRejected = errors.New("generated text rejected")

// Config controls the retry policy and output bound.
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxChars       int
}

// ConfigFromSettings derives the synthesizer policy from application settings.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		MaxAttempts:    cfg.Script.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout(),
		BaseDelay:      time.Duration(cfg.Script.BackoffSeconds) * time.Second,
		MaxDelay:       time.Duration(cfg.Script.MaxBackoffSeconds) * time.Second,
		MaxChars:       cfg.Script.MaxChars,
	}
}

// Synthesizer turns messages into narration scripts.
type Synthesizer struct {
	generator TextGenerator
	cfg       Config
	logger    *slog.Logger
	sleeper   func(context.Context, time.Duration) error
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithSleeper overrides how backoff sleeps are performed.
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(s *Synthesizer) {
		if sleeper != nil {
			s.sleeper = sleeper
		}
	}
}

// New constructs a Synthesizer. A nil generator always produces the fallback.
func New(generator TextGenerator, cfg Config, logger *slog.Logger, opts ...Option) *Synthesizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.MaxChars <= 0 || cfg.MaxChars > MaxChars {
		cfg.MaxChars = MaxChars
	}
	s := &Synthesizer{
		generator: generator,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "script"),
		sleeper:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize produces narration for msg. It never fails: when the generator
// cannot deliver acceptable text the fallback template is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, msg message.Canonical) Script {
	logger := logging.WithContext(ctx, s.logger)
	result := Script{MessageID: msg.ID}

	if msg.IsEmpty() || s.generator == nil {
		result.Text = Fallback(msg, s.cfg.MaxChars)
		result.GeneratedBy = stage.Fallback
		s.logResult(logger, result, nil)
		return result
	}

	system := SystemPrompt(s.cfg.MaxChars)
	user := UserPrompt(msg)
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt
		text, err := s.attempt(ctx, system, user)
		if err == nil {
			result.Text = text
			result.GeneratedBy = stage.Primary
			s.logResult(logger, result, nil)
			return result
		}
		lastErr = err
		logger.Debug("narration attempt failed",
			logging.Int("attempt", attempt),
			logging.String("error_kind", string(services.Classify(err))),
			logging.Error(err),
		)

		delay, retry := s.retryDelay(ctx, err, attempt)
		if !retry {
			break
		}
		if err := s.sleeper(ctx, delay); err != nil {
			break
		}
	}

	result.Text = Fallback(msg, s.cfg.MaxChars)
	result.GeneratedBy = stage.Fallback
	s.logResult(logger, result, lastErr)
	return result
}

func (s *Synthesizer) attempt(ctx context.Context, system, user string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	raw, err := s.generator.Generate(attemptCtx, system, user)
	if err != nil {
		return "", err
	}
	text := Clean(raw, s.cfg.MaxChars)
	if !Acceptable(text, s.cfg.MaxChars) {
		return "", services.Wrap(services.ErrTransient, "script", "validate",
			fmt.Sprintf("%d characters", len([]rune(text))), errRejected)
	}
	return text, nil
}

func (s *Synthesizer) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= s.cfg.MaxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return 0, false
	}
	if !services.IsRetryable(err) {
		return 0, false
	}
	if hint, ok := services.RetryAfter(err); ok {
		return s.capDelay(hint), true
	}
	return s.backoffDelay(attempt), true
}

// backoffDelay returns the wait before attempt+1: base, base*2, base*4, ...
func (s *Synthesizer) backoffDelay(attempt int) time.Duration {
	base := s.cfg.BaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > s.cfg.MaxDelay/2 {
			delay = s.cfg.MaxDelay
			break
		}
		delay *= 2
	}
	return s.capDelay(delay)
}

func (s *Synthesizer) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if s.cfg.MaxDelay > 0 && delay > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delay
}

func (s *Synthesizer) logResult(logger *slog.Logger, result Script, lastErr error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "script_synthesized"),
		logging.Int("attempts", result.Attempts),
		logging.String("generated_by", string(result.GeneratedBy)),
		logging.Int("length", len([]rune(result.Text))),
	}
	if lastErr != nil {
		attrs = append(attrs, logging.Error(lastErr))
		logger.Warn("narration fell back to template", logging.Args(attrs...)...)
		return
	}
	logger.Info("narration ready", logging.Args(attrs...)...)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
