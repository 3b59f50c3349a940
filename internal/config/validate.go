package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScript(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		return errors.New("paths.audio_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DefaultAudio) == "" {
		return errors.New("paths.default_audio must be set")
	}
	return nil
}

func (c *Config) validateScript() error {
	switch c.Script.Provider {
	case providerOpenAI, providerOpenRouter:
	default:
		return fmt.Errorf("script.provider: unsupported value %q (want openai or openrouter)", c.Script.Provider)
	}
	if c.Script.MaxAttempts <= 0 {
		return errors.New("script.max_attempts must be positive")
	}
	if c.Script.AttemptTimeoutSeconds <= 0 {
		return errors.New("script.attempt_timeout_seconds must be positive")
	}
	if c.Script.BackoffSeconds < 0 {
		return errors.New("script.backoff_seconds must be zero or positive")
	}
	if c.Script.MaxBackoffSeconds < c.Script.BackoffSeconds {
		return errors.New("script.max_backoff_seconds must be >= script.backoff_seconds")
	}
	if c.Script.MaxChars < 20 {
		return errors.New("script.max_chars must be at least 20")
	}
	if c.Script.Temperature < 0 || c.Script.Temperature > 2 {
		return errors.New("script.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.TimeoutSeconds <= 0 {
		return errors.New("speech.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return errors.New("video.width and video.height must be positive")
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return errors.New("video.width and video.height must be even")
	}
	if c.Video.FPS <= 0 {
		return errors.New("video.fps must be positive")
	}
	if c.Video.MaxDurationSeconds <= 0 {
		return errors.New("video.max_duration_seconds must be positive")
	}
	if c.Video.DefaultDurationSeconds <= 0 || c.Video.DefaultDurationSeconds > c.Video.MaxDurationSeconds {
		return errors.New("video.default_duration_seconds must be positive and <= video.max_duration_seconds")
	}
	if c.Video.MuxTimeoutSeconds <= 0 {
		return errors.New("video.mux_timeout_seconds must be positive")
	}
	if c.Video.MinFreeMB < 0 {
		return errors.New("video.min_free_mb must be zero or positive")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency <= 0 {
		return errors.New("batch.concurrency must be positive")
	}
	if c.Batch.MaxItems <= 0 {
		return errors.New("batch.max_items must be positive")
	}
	if c.Batch.DeadlineSeconds < 0 {
		return errors.New("batch.deadline_seconds must be zero or positive")
	}
	if c.Batch.PollIntervalSeconds < 0 {
		return errors.New("batch.poll_interval_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
