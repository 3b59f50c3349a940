package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, asset, and bind address configuration.
type Paths struct {
	StateDir     string `toml:"state_dir"`
	OutputDir    string `toml:"output_dir"`
	AudioDir     string `toml:"audio_dir"`
	AssetsDir    string `toml:"assets_dir"`
	DefaultAudio string `toml:"default_audio"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Script contains the narration text generator settings.
type Script struct {
	Provider              string  `toml:"provider"`
	APIKey                string  `toml:"api_key"`
	BaseURL               string  `toml:"base_url"`
	Model                 string  `toml:"model"`
	Referer               string  `toml:"referer"`
	Title                 string  `toml:"title"`
	MaxAttempts           int     `toml:"max_attempts"`
	AttemptTimeoutSeconds int     `toml:"attempt_timeout_seconds"`
	BackoffSeconds        int     `toml:"backoff_seconds"`
	MaxBackoffSeconds     int     `toml:"max_backoff_seconds"`
	MaxChars              int     `toml:"max_chars"`
	MaxTokens             int     `toml:"max_tokens"`
	Temperature           float64 `toml:"temperature"`
}

// Speech contains the text-to-speech settings.
type Speech struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Video contains clip geometry, muxing, and background catalog settings.
type Video struct {
	Width                  int                 `toml:"width"`
	Height                 int                 `toml:"height"`
	FPS                    int                 `toml:"fps"`
	MaxDurationSeconds     float64             `toml:"max_duration_seconds"`
	DefaultDurationSeconds float64             `toml:"default_duration_seconds"`
	Thumbnails             bool                `toml:"thumbnails"`
	ThumbnailAtSeconds     float64             `toml:"thumbnail_at_seconds"`
	MuxTimeoutSeconds      int                 `toml:"mux_timeout_seconds"`
	MinFreeMB              int                 `toml:"min_free_mb"`
	FontFile               string              `toml:"font_file"`
	BackgroundColor        string              `toml:"background_color"`
	Backgrounds            map[string][]string `toml:"backgrounds"`
}

// Batch contains batch coordinator and mailbox polling settings.
type Batch struct {
	Concurrency         int    `toml:"concurrency"`
	MaxItems            int    `toml:"max_items"`
	DeadlineSeconds     int    `toml:"deadline_seconds"`
	Mailbox             string `toml:"mailbox"`
	MailboxLimit        int    `toml:"mailbox_limit"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchCompleted bool   `toml:"batch_completed"`
	ItemFailed     bool   `toml:"item_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mailreel.
//
// Configuration sections by subsystem:
//   - Paths: state, output, and asset directories plus the API bind address
//   - Script: narration text generator (OpenAI or OpenRouter)
//   - Speech: text-to-speech voice and model
//   - Video: clip geometry, ffmpeg limits, and background catalog
//   - Batch: concurrency, deadlines, and mailbox polling
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Script        Script        `toml:"script"`
	Speech        Speech        `toml:"speech"`
	Video         Video         `toml:"video"`
	Batch         Batch         `toml:"batch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mailreel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files from the working directory and from the
// directory holding the config file. Variables already present in the
// environment win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	var files []string
	seen := map[string]struct{}{}
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			files = append(files, abs)
		}
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mailreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.OutputDir, c.Paths.AudioDir, c.Paths.AssetsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the artifact store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "mailreel.db")
}

// LockPath returns the batch runner lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mailreel.lock")
}

// PIDPath returns the pid file written by the foreground server.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "mailreel.pid")
}

// FFmpegBinary returns the ffmpeg executable name used for muxing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// AttemptTimeout returns the per-attempt text generation timeout.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Script.AttemptTimeoutSeconds) * time.Second
}

// BatchDeadline returns the batch deadline, or zero when batches run unbounded.
func (c *Config) BatchDeadline() time.Duration {
	return time.Duration(c.Batch.DeadlineSeconds) * time.Second
}

// BackgroundCategories returns the configured category names in stable order.
func (c *Config) BackgroundCategories() []string {
	names := make([]string, 0, len(c.Video.Backgrounds))
	for name := range c.Video.Backgrounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML, with secrets redacted.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.Script.APIKey = redact(redacted.Script.APIKey)
	redacted.Speech.APIKey = redact(redacted.Speech.APIKey)
	redacted.Paths.APIToken = redact(redacted.Paths.APIToken)
	return toml.Marshal(redacted)
}

func redact(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "********"
}
