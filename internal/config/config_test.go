package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mailreel/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"OPENAI_API_KEY", "OPENROUTER_API_KEY", "MAILREEL_NTFY_TOPIC", "MAILREEL_API_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(home, ".local", "share", "mailreel", "videos")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	wantAudio := filepath.Join(home, ".local", "share", "mailreel", "assets", "default_audio.mp3")
	if cfg.Paths.DefaultAudio != wantAudio {
		t.Fatalf("unexpected default audio: got %q want %q", cfg.Paths.DefaultAudio, wantAudio)
	}
	if cfg.Script.APIKey != "sk-test" || cfg.Speech.APIKey != "sk-test" {
		t.Fatalf("expected API keys from env, got %q / %q", cfg.Script.APIKey, cfg.Speech.APIKey)
	}
	if cfg.Script.MaxAttempts != 3 || cfg.Script.MaxChars != 150 {
		t.Fatalf("unexpected script defaults: %+v", cfg.Script)
	}
	if cfg.Speech.Voice != "nova" {
		t.Fatalf("unexpected voice: %q", cfg.Speech.Voice)
	}
	work := cfg.Video.Backgrounds["work"]
	if len(work) != 1 || !strings.HasPrefix(work[0], filepath.Join(home, ".local", "share", "mailreel", "assets")) {
		t.Fatalf("expected background anchored under assets dir, got %v", work)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.StateDir, "mailreel.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadReadsFileAndDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mailreel.toml")
	content := `
[paths]
output_dir = "` + filepath.Join(dir, "out") + `"

[script]
provider = "openrouter"

[batch]
concurrency = 5
deadline_seconds = 90
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENROUTER_API_KEY=or-key\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("OPENROUTER_API_KEY") })

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(dir, "out") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Script.APIKey != "or-key" {
		t.Fatalf("expected key from .env, got %q", cfg.Script.APIKey)
	}
	if cfg.Script.BaseURL == "" || cfg.Script.Model != "openai/gpt-4o-mini" {
		t.Fatalf("expected openrouter defaults, got %+v", cfg.Script)
	}
	if cfg.Batch.Concurrency != 5 || cfg.BatchDeadline().Seconds() != 90 {
		t.Fatalf("unexpected batch settings: %+v", cfg.Batch)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"provider", func(c *config.Config) { c.Script.Provider = "bard" }, "script.provider"},
		{"attempts", func(c *config.Config) { c.Script.MaxAttempts = 0 }, "script.max_attempts"},
		{"odd width", func(c *config.Config) { c.Video.Width = 1081 }, "must be even"},
		{"concurrency", func(c *config.Config) { c.Batch.Concurrency = 0 }, "batch.concurrency"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"default duration", func(c *config.Config) { c.Video.DefaultDurationSeconds = 120 }, "default_duration_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DefaultAudio = "/tmp/default.mp3"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Script.APIKey = "sk-secret"
	cfg.Paths.APIToken = "token"
	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if strings.Contains(string(out), "sk-secret") || strings.Contains(string(out), "\"token\"") {
		t.Fatalf("expected secrets to be redacted, got %s", out)
	}
}
