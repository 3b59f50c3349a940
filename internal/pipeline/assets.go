package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mailreel/internal/config"
	"mailreel/internal/fileutil"
)

// DefaultAudioLength is the length of generated placeholder narration.
const DefaultAudioLength = 3 * time.Second

// SilenceWriter renders a silent audio file.
type SilenceWriter interface {
	SilentAudio(ctx context.Context, out string, length time.Duration) error
}

// EnsureDefaultAudio creates the fallback narration file when it is missing.
// It reports whether a file was written. An existing file is never replaced
// unless force is set.
func EnsureDefaultAudio(ctx context.Context, cfg *config.Config, writer SilenceWriter, force bool) (bool, error) {
	target := cfg.Paths.DefaultAudio
	if !force && fileutil.NonEmptyFile(target) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create assets directory: %w", err)
	}
	tmp := target + ".partial.mp3"
	defer os.Remove(tmp)
	if err := writer.SilentAudio(ctx, tmp, DefaultAudioLength); err != nil {
		return false, fmt.Errorf("generate default audio: %w", err)
	}
	if !fileutil.NonEmptyFile(tmp) {
		return false, fmt.Errorf("generate default audio: no output written")
	}
	if err := os.Rename(tmp, target); err != nil {
		return false, fmt.Errorf("install default audio: %w", err)
	}
	return true, nil
}
