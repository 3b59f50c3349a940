package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mailreel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Backgrounds point into the temp assets directory and do not exist unless a
// test writes them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Script.APIKey = "test"
	cfgVal.Speech.APIKey = "test"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.OutputDir = filepath.Join(base, "videos")
	cfgVal.Paths.AudioDir = filepath.Join(base, "audio")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DefaultAudio = filepath.Join(base, "assets", "default_audio.mp3")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Script.BackoffSeconds = 0
	cfgVal.Video.MinFreeMB = 0
	backgrounds := make(map[string][]string, len(cfgVal.Video.Backgrounds))
	for category, files := range cfgVal.Video.Backgrounds {
		resolved := make([]string, 0, len(files))
		for _, file := range files {
			resolved = append(resolved, filepath.Join(base, "assets", file))
		}
		backgrounds[category] = resolved
	}
	cfgVal.Video.Backgrounds = backgrounds

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIKey sets the text and speech API keys on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Script.APIKey = key
		b.cfg.Speech.APIKey = key
	}
}

// WithDefaultAudio writes a placeholder default audio asset.
func WithDefaultAudio() ConfigOption {
	return func(b *configBuilder) {
		WriteAudio(b.t, b.cfg.Paths.DefaultAudio, 512)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
