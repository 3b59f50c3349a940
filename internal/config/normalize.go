package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScript()
	c.normalizeSpeech()
	if err := c.normalizeVideo(); err != nil {
		return err
	}
	if err := c.normalizeBatch(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DefaultAudio) == "" {
		c.Paths.DefaultAudio = defaultAudioFile
	}
	if c.Paths.DefaultAudio, err = c.resolveAsset(c.Paths.DefaultAudio); err != nil {
		return fmt.Errorf("paths.default_audio: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MAILREEL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

// resolveAsset anchors relative asset names under the assets directory.
func (c *Config) resolveAsset(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if strings.HasPrefix(name, "~") || filepath.IsAbs(name) {
		return expandPath(name)
	}
	return expandPath(filepath.Join(c.Paths.AssetsDir, name))
}

func (c *Config) normalizeScript() {
	c.Script.Provider = strings.ToLower(strings.TrimSpace(c.Script.Provider))
	if c.Script.Provider == "" {
		c.Script.Provider = defaultScriptProvider
	}
	c.Script.BaseURL = strings.TrimSpace(c.Script.BaseURL)
	c.Script.Model = strings.TrimSpace(c.Script.Model)
	switch c.Script.Provider {
	case providerOpenRouter:
		if c.Script.APIKey == "" {
			c.Script.APIKey = lookupEnv("OPENROUTER_API_KEY")
		}
		if c.Script.BaseURL == "" {
			c.Script.BaseURL = defaultOpenRouterBaseURL
		}
		if c.Script.Model == "" {
			c.Script.Model = defaultOpenRouterModel
		}
	default:
		if c.Script.APIKey == "" {
			c.Script.APIKey = lookupEnv("OPENAI_API_KEY")
		}
		if c.Script.Model == "" {
			c.Script.Model = defaultOpenAIModel
		}
	}
	c.Script.APIKey = strings.TrimSpace(c.Script.APIKey)
	if c.Script.MaxChars <= 0 {
		c.Script.MaxChars = defaultScriptMaxChars
	}
}

func (c *Config) normalizeSpeech() {
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = lookupEnv("OPENAI_API_KEY")
	}
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	c.Speech.Model = strings.TrimSpace(c.Speech.Model)
	if c.Speech.Model == "" {
		c.Speech.Model = defaultSpeechModel
	}
	c.Speech.Voice = strings.ToLower(strings.TrimSpace(c.Speech.Voice))
	if c.Speech.Voice == "" {
		c.Speech.Voice = defaultSpeechVoice
	}
}

func (c *Config) normalizeVideo() error {
	if strings.TrimSpace(c.Video.BackgroundColor) == "" {
		c.Video.BackgroundColor = defaultBackgroundColor
	}
	if c.Video.FontFile != "" {
		expanded, err := expandPath(c.Video.FontFile)
		if err != nil {
			return fmt.Errorf("video.font_file: %w", err)
		}
		c.Video.FontFile = expanded
	}
	normalized := make(map[string][]string, len(c.Video.Backgrounds))
	for category, files := range c.Video.Backgrounds {
		key := strings.ToLower(strings.TrimSpace(category))
		if key == "" {
			continue
		}
		for _, file := range files {
			resolved, err := c.resolveAsset(file)
			if err != nil {
				return fmt.Errorf("video.backgrounds.%s: %w", key, err)
			}
			if resolved != "" {
				normalized[key] = append(normalized[key], resolved)
			}
		}
	}
	c.Video.Backgrounds = normalized
	return nil
}

func (c *Config) normalizeBatch() error {
	c.Batch.Mailbox = strings.TrimSpace(c.Batch.Mailbox)
	if c.Batch.Mailbox != "" {
		expanded, err := expandPath(c.Batch.Mailbox)
		if err != nil {
			return fmt.Errorf("batch.mailbox: %w", err)
		}
		c.Batch.Mailbox = expanded
	}
	if c.Batch.MailboxLimit <= 0 {
		c.Batch.MailboxLimit = defaultMailboxLimit
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupEnv("MAILREEL_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
