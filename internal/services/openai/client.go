package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mailreel/internal/logging"
	"mailreel/internal/services"
)

const (
	defaultChatModel   = "gpt-4o-mini"
	defaultSpeechModel = "tts-1"
	defaultVoice       = "nova"
	maxAudioBytes      = 25 << 20
)

// Config captures the connection and generation settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	SpeechModel    string
	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int
}

// Client talks to the OpenAI API for chat and speech.
type Client struct {
	client         osdk.Client
	cfg            Config
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New constructs a Client. An API key is required.
func New(cfg Config, logger *slog.Logger, extra ...option.RequestOption) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "openai", "new client", "api key required", nil)
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		cfg.ChatModel = defaultChatModel
	}
	if strings.TrimSpace(cfg.SpeechModel) == "" {
		cfg.SpeechModel = defaultSpeechModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	requestTimeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}
	opts = append(opts, extra...)

	return &Client{
		client:         osdk.NewClient(opts...),
		cfg:            cfg,
		requestTimeout: requestTimeout,
		logger:         logging.NewComponentLogger(logger, "provider.openai"),
	}, nil
}

// Generate requests a short chat completion and returns its text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := c.logger.With("operation", "chat")
	startedAt := time.Now()

	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "openai", "chat", "user prompt required", nil)
	}
	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		messages = append(messages, osdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, osdk.UserMessage(userPrompt))

	params := osdk.ChatCompletionNewParams{
		Model:       osdk.ChatModel(c.cfg.ChatModel),
		Messages:    messages,
		Temperature: osdk.Float(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = osdk.Int(int64(c.cfg.MaxTokens))
	}

	log.Debug("provider request started", "model", c.cfg.ChatModel, "prompt_length", len(userPrompt))
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", classify("chat", err)
	}
	var text string
	for _, choice := range completion.Choices {
		if text = strings.TrimSpace(choice.Message.Content); text != "" {
			break
		}
	}
	if text == "" {
		return "", services.Wrap(services.ErrTransient, "openai", "chat", "completion returned no text", nil)
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))
	return text, nil
}

// Synthesize converts text to speech and returns the encoded audio (mp3).
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := c.logger.With("operation", "speech")
	startedAt := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "openai", "speech", "text required", nil)
	}
	if voice = strings.TrimSpace(voice); voice == "" {
		voice = defaultVoice
	}
	params := osdk.AudioSpeechNewParams{
		Model:          osdk.SpeechModel(c.cfg.SpeechModel),
		Input:          text,
		ResponseFormat: osdk.AudioSpeechNewParamsResponseFormatMP3,
	}

	log.Debug("provider request started", "model", c.cfg.SpeechModel, "voice", voice, "text_length", len(text))
	// Voices are configured as free-form ids, not only the built-in names.
	resp, err := c.client.Audio.Speech.New(ctx, params, option.WithJSONSet("voice", voice))
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, classify("speech", err)
	}
	if resp == nil || resp.Body == nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "speech", "empty response", nil)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, classify("speech", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrTransient, "openai", "speech", "empty audio", nil)
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "bytes", len(audio))
	return audio, nil
}

// HealthCheck lists models to verify the key is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if _, err := c.client.Models.List(ctx); err != nil {
		return classify("health", err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "openai", op, "request deadline exceeded", err)
	}
	var apiErr *osdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "openai", op, "retryable status", err)
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "openai", op, "credentials rejected", err)
		default:
			return services.Wrap(services.ErrValidation, "openai", op, "request rejected", err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return services.Wrap(services.ErrTimeout, "openai", op, "network timeout", err)
		}
		return services.Wrap(services.ErrTransient, "openai", op, "network error", err)
	}
	return services.Wrap(services.ErrExternalTool, "openai", op, "", err)
}
