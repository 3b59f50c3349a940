package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailreel/internal/assembly"
	"mailreel/internal/config"
	"mailreel/internal/logging"
	"mailreel/internal/media/ffprobe"
	"mailreel/internal/message"
	"mailreel/internal/metrics"
	"mailreel/internal/narration"
	"mailreel/internal/notifications"
	"mailreel/internal/preflight"
	"mailreel/internal/script"
	"mailreel/internal/services/ffmpeg"
	"mailreel/internal/services/llm"
	"mailreel/internal/services/openai"
	"mailreel/internal/workflow"
)

// Pipeline is the wired processing graph.
type Pipeline struct {
	Coordinator  *workflow.Coordinator
	Orchestrator *workflow.Orchestrator
	Normalizer   message.Normalizer
	Muxer        *ffmpeg.Muxer
	Metrics      *metrics.Collector
	// Remotes lists the provider clients for preflight checks.
	Remotes []preflight.Remote
}

// Build wires every stage from cfg. Missing provider keys are not errors:
// the affected stage runs on its fallback.
func Build(cfg *config.Config, st workflow.Store, notifier notifications.Service, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	generator, err := NewTextGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	speech, err := NewSpeechSynthesizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	muxer := ffmpeg.New(cfg.FFmpegBinary(), cfg.Video.FontFile, time.Duration(cfg.Video.MuxTimeoutSeconds)*time.Second, logger)
	probe := ffprobe.Prober{Binary: cfg.FFprobeBinary()}
	normalizer := message.Normalizer{}
	collector := metrics.New()

	orchestrator := workflow.NewOrchestrator(workflow.Stages{
		Normalizer: normalizer,
		Scripter:   script.New(generator, script.ConfigFromSettings(cfg), logger),
		Narrator:   narration.New(speech, narration.ConfigFromSettings(cfg), logger),
		Assembler:  assembly.New(assembly.ConfigFromSettings(cfg), muxer, probe, logger),
	}, workflow.TimeoutsFromSettings(cfg), notifier, logger, workflow.WithStageMetrics(collector))

	coordinator := workflow.NewCoordinator(orchestrator, st, normalizer, notifier, workflow.CoordinatorConfig{
		Concurrency: cfg.Batch.Concurrency,
		Deadline:    cfg.BatchDeadline(),
		Metrics:     collector,
	}, logger)

	p := &Pipeline{
		Coordinator:  coordinator,
		Orchestrator: orchestrator,
		Normalizer:   normalizer,
		Muxer:        muxer,
		Metrics:      collector,
		Remotes:      remotesFor(cfg, generator, speech),
	}

	logger.Info("pipeline ready",
		logging.String(logging.FieldEventType, "pipeline_ready"),
		logging.String("script_provider", cfg.Script.Provider),
		logging.Bool("script_enabled", generator != nil),
		logging.Bool("speech_enabled", speech != nil),
		logging.Int("concurrency", cfg.Batch.Concurrency),
	)
	return p, nil
}

// RemoteChecks builds the provider clients only to verify their credentials.
func RemoteChecks(cfg *config.Config, logger *slog.Logger) ([]preflight.Remote, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	generator, err := NewTextGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	speech, err := NewSpeechSynthesizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return remotesFor(cfg, generator, speech), nil
}

func remotesFor(cfg *config.Config, generator TextClient, speech SpeechClient) []preflight.Remote {
	var remotes []preflight.Remote
	if generator != nil {
		remotes = append(remotes, preflight.Remote{Name: "Script API (" + cfg.Script.Provider + ")", Checker: generator})
	}
	if speech != nil {
		remotes = append(remotes, preflight.Remote{Name: "Speech API", Checker: speech})
	}
	return remotes
}

// TextClient is a text generator that can also verify its credentials.
type TextClient interface {
	script.TextGenerator
	preflight.HealthChecker
}

// NewTextGenerator returns the configured narration provider, or nil when no
// API key is set.
func NewTextGenerator(cfg *config.Config, logger *slog.Logger) (TextClient, error) {
	if strings.TrimSpace(cfg.Script.APIKey) == "" {
		logging.WarnWithContext(logger, "script api key missing; narration uses the fallback template", "script_disabled",
			logging.String("provider", cfg.Script.Provider),
		)
		return nil, nil
	}
	switch cfg.Script.Provider {
	case "openrouter":
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.Script.APIKey,
			BaseURL:        cfg.Script.BaseURL,
			Model:          cfg.Script.Model,
			Referer:        cfg.Script.Referer,
			Title:          cfg.Script.Title,
			TimeoutSeconds: cfg.Script.AttemptTimeoutSeconds,
			MaxTokens:      cfg.Script.MaxTokens,
			Temperature:    cfg.Script.Temperature,
		})
		return client, nil
	default:
		client, err := openai.New(openai.Config{
			APIKey:         cfg.Script.APIKey,
			BaseURL:        cfg.Script.BaseURL,
			ChatModel:      cfg.Script.Model,
			MaxTokens:      cfg.Script.MaxTokens,
			Temperature:    cfg.Script.Temperature,
			TimeoutSeconds: cfg.Script.AttemptTimeoutSeconds,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// SpeechClient synthesizes narration and can verify its credentials.
type SpeechClient interface {
	narration.SpeechSynthesizer
	preflight.HealthChecker
}

// NewSpeechSynthesizer returns the speech provider, or nil when speech is
// disabled or no API key is set.
func NewSpeechSynthesizer(cfg *config.Config, logger *slog.Logger) (SpeechClient, error) {
	if !cfg.Speech.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Speech.APIKey) == "" {
		logging.WarnWithContext(logger, "speech api key missing; narration uses the default audio", "speech_disabled")
		return nil, nil
	}
	client, err := openai.New(openai.Config{
		APIKey:         cfg.Speech.APIKey,
		BaseURL:        cfg.Speech.BaseURL,
		SpeechModel:    cfg.Speech.Model,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
