package narration

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"mailreel/internal/config"
	"mailreel/internal/fileutil"
	"mailreel/internal/logging"
	"mailreel/internal/script"
	"mailreel/internal/services"
	"mailreel/internal/stage"
	"mailreel/internal/textutil"
)

const (
	defaultTimeout = 30 * time.Second
	minScriptRunes = 5
)

// Asset points at the narration audio for one message.
type Asset struct {
	MessageID   string       `json:"messageId"`
	Locator     string       `json:"locator"`
	GeneratedBy stage.Origin `json:"generatedBy"`
}

// Origin reports whether the audio was synthesized or is the default asset.
func (a Asset) Origin() stage.Origin { return a.GeneratedBy }

// SpeechSynthesizer converts text to encoded audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Config controls where audio is written and how long synthesis may take.
type Config struct {
	AudioDir     string
	DefaultAudio string
	Voice        string
	Timeout      time.Duration
}

// ConfigFromSettings derives the renderer config from application settings.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		AudioDir:     cfg.Paths.AudioDir,
		DefaultAudio: cfg.Paths.DefaultAudio,
		Voice:        cfg.Speech.Voice,
		Timeout:      time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
	}
}

// Renderer produces narration audio.
type Renderer struct {
	synth  SpeechSynthesizer
	cfg    Config
	logger *slog.Logger
}

// New constructs a Renderer. A nil synthesizer always yields the default asset.
func New(synth SpeechSynthesizer, cfg Config, logger *slog.Logger) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Renderer{
		synth:  synth,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "narration"),
	}
}

// Render synthesizes audio for s. It never fails: errors yield the default
// audio locator with GeneratedBy set to fallback.
func (r *Renderer) Render(ctx context.Context, s script.Script) Asset {
	logger := logging.WithContext(ctx, r.logger)
	fallback := Asset{MessageID: s.MessageID, Locator: r.cfg.DefaultAudio, GeneratedBy: stage.Fallback}

	text := strings.TrimSpace(s.Text)
	if r.synth == nil {
		logger.Debug("speech disabled; using default audio")
		return fallback
	}
	if utf8.RuneCountInString(text) < minScriptRunes {
		logger.Info("script too short for speech; using default audio", logging.Int("length", utf8.RuneCountInString(text)))
		return fallback
	}

	synthCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	audio, err := r.synth.Synthesize(synthCtx, text, r.cfg.Voice)
	if err != nil {
		logging.WarnWithContext(logger, "speech synthesis failed; using default audio", "speech_fallback",
			logging.String("error_kind", string(services.Classify(err))),
			logging.Error(err),
		)
		return fallback
	}
	if len(audio) == 0 {
		logging.WarnWithContext(logger, "speech synthesis returned no audio; using default audio", "speech_fallback")
		return fallback
	}

	target := filepath.Join(r.cfg.AudioDir, textutil.FileStem(s.MessageID)+".mp3")
	if err := fileutil.WriteFileAtomic(target, audio, 0o644); err != nil {
		logging.WarnWithContext(logger, "writing narration audio failed; using default audio", "speech_fallback",
			logging.String("path", target),
			logging.Error(err),
		)
		return fallback
	}

	logger.Info("narration audio ready",
		logging.String("locator", target),
		logging.Int("bytes", len(audio)),
	)
	return Asset{MessageID: s.MessageID, Locator: target, GeneratedBy: stage.Primary}
}
