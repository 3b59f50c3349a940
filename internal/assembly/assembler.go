package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"mailreel/internal/config"
	"mailreel/internal/fileutil"
	"mailreel/internal/logging"
	"mailreel/internal/message"
	"mailreel/internal/narration"
	"mailreel/internal/services"
	"mailreel/internal/store"
	"mailreel/internal/textutil"
)

const (
	maxOverlaySender  = 20
	maxOverlaySubject = 30
)

// Overlay is the text drawn on top of the background.
type Overlay struct {
	Sender  string
	Subject string
}

// MuxRequest describes one clip render. Background is empty when the muxer
// should generate a solid BackgroundColor source instead.
type MuxRequest struct {
	Background      string
	BackgroundColor string
	Audio           string
	Overlay         Overlay
	Output          string
	Width           int
	Height          int
	Duration        time.Duration
	FPS             int
}

// VideoMuxer renders clips and thumbnails.
type VideoMuxer interface {
	Mux(ctx context.Context, req MuxRequest) error
	Thumbnail(ctx context.Context, video, out string, at time.Duration) error
}

// MediaProbe measures audio durations.
type MediaProbe interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Config holds clip geometry and limits.
type Config struct {
	VideoDir        string
	Width           int
	Height          int
	FPS             int
	MaxDuration     time.Duration
	DefaultDuration time.Duration
	Thumbnails      bool
	ThumbnailAt     time.Duration
	MinFreeBytes    uint64
	BackgroundColor string
	Backgrounds     Catalog
}

// ConfigFromSettings derives the assembler config from application settings.
func ConfigFromSettings(cfg *config.Config) Config {
	catalog := make(Catalog, len(cfg.Video.Backgrounds))
	for category, files := range cfg.Video.Backgrounds {
		catalog[category] = append([]string(nil), files...)
	}
	return Config{
		VideoDir:        cfg.Paths.OutputDir,
		Width:           cfg.Video.Width,
		Height:          cfg.Video.Height,
		FPS:             cfg.Video.FPS,
		MaxDuration:     seconds(cfg.Video.MaxDurationSeconds),
		DefaultDuration: seconds(cfg.Video.DefaultDurationSeconds),
		Thumbnails:      cfg.Video.Thumbnails,
		ThumbnailAt:     seconds(cfg.Video.ThumbnailAtSeconds),
		MinFreeBytes:    uint64(max(cfg.Video.MinFreeMB, 0)) << 20,
		BackgroundColor: cfg.Video.BackgroundColor,
		Backgrounds:     catalog,
	}
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

// Assembler renders clips through a VideoMuxer.
type Assembler struct {
	cfg       Config
	muxer     VideoMuxer
	probe     MediaProbe
	logger    *slog.Logger
	now       func() time.Time
	freeSpace func(path string) (uint64, error)
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithClock overrides the artifact creation clock.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithFreeSpaceFunc overrides the free-space probe.
func WithFreeSpaceFunc(fn func(path string) (uint64, error)) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.freeSpace = fn
		}
	}
}

// New constructs an Assembler.
func New(cfg Config, muxer VideoMuxer, probe MediaProbe, logger *slog.Logger, opts ...Option) *Assembler {
	if cfg.Width <= 0 {
		cfg.Width = 1080
	}
	if cfg.Height <= 0 {
		cfg.Height = 1920
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 60 * time.Second
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30 * time.Second
	}
	if cfg.ThumbnailAt <= 0 {
		cfg.ThumbnailAt = 2 * time.Second
	}
	if strings.TrimSpace(cfg.BackgroundColor) == "" {
		cfg.BackgroundColor = "0x1d3557"
	}
	a := &Assembler{
		cfg:       cfg,
		muxer:     muxer,
		probe:     probe,
		logger:    logging.NewComponentLogger(logger, "assembler"),
		now:       time.Now,
		freeSpace: statfsFree,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders the clip for msg using the narration audio in asset.
// The returned error is always an *Error.
func (a *Assembler) Assemble(ctx context.Context, asset narration.Asset, msg message.Canonical) (store.Artifact, error) {
	logger := logging.WithContext(ctx, a.logger)
	if a.muxer == nil {
		return store.Artifact{}, permanent("configure", services.Wrap(services.ErrConfiguration, "assemble", "muxer", "no video muxer configured", nil))
	}

	audio := strings.TrimSpace(asset.Locator)
	if audio == "" {
		return store.Artifact{}, permanent("validate audio", services.Wrap(services.ErrValidation, "assemble", "audio", "audio locator is empty", nil))
	}
	if !fileutil.NonEmptyFile(audio) {
		return store.Artifact{}, permanent("validate audio", services.Wrap(services.ErrValidation, "assemble", "audio", fmt.Sprintf("audio %q is missing or empty", audio), nil))
	}

	if err := os.MkdirAll(a.cfg.VideoDir, 0o755); err != nil {
		return store.Artifact{}, classify("prepare output", err)
	}
	if err := a.checkFreeSpace(); err != nil {
		return store.Artifact{}, err
	}

	duration := a.clipDuration(ctx, logger, audio)
	selection := SelectBackground(msg, a.cfg.Backgrounds)
	background := selection.Path
	if background != "" && !fileutil.NonEmptyFile(background) {
		logger.Warn("background missing; using solid colour",
			logging.String("background", background),
			logging.String("category", selection.Category),
		)
		background = ""
	}

	stem := textutil.FileStem(msg.ID)
	finalPath := filepath.Join(a.cfg.VideoDir, stem+".mp4")
	tempPath := filepath.Join(a.cfg.VideoDir, fmt.Sprintf(".tmp-%s-%s.mp4", stem, uuid.NewString()))
	defer func() {
		_ = os.Remove(tempPath)
	}()

	req := MuxRequest{
		Background:      background,
		BackgroundColor: a.cfg.BackgroundColor,
		Audio:           audio,
		Overlay: Overlay{
			Sender:  textutil.Truncate(msg.SenderName, maxOverlaySender, ""),
			Subject: textutil.Truncate(msg.Subject, maxOverlaySubject, ""),
		},
		Output:   tempPath,
		Width:    a.cfg.Width,
		Height:   a.cfg.Height,
		Duration: duration,
		FPS:      a.cfg.FPS,
	}
	if err := a.muxer.Mux(ctx, req); err != nil {
		return store.Artifact{}, classify("mux", err)
	}
	if !fileutil.NonEmptyFile(tempPath) {
		return store.Artifact{}, permanent("mux", services.Wrap(services.ErrExternalTool, "assemble", "mux", "muxer produced no output", nil))
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return store.Artifact{}, classify("finalize", err)
	}

	artifact := store.Artifact{
		MessageID:       msg.ID,
		Locator:         finalPath,
		DurationSeconds: duration.Seconds(),
		Width:           a.cfg.Width,
		Height:          a.cfg.Height,
		CreatedAt:       a.now().UTC(),
		Background:      textutil.Ternary(background != "", selection.Category, "color"),
	}
	if a.cfg.Thumbnails {
		thumbPath := filepath.Join(a.cfg.VideoDir, stem+".jpg")
		at := min(a.cfg.ThumbnailAt, duration/2)
		if err := a.muxer.Thumbnail(ctx, finalPath, thumbPath, at); err != nil {
			logger.Warn("thumbnail generation failed",
				logging.String(logging.FieldEventType, "thumbnail_failed"),
				logging.Error(err),
			)
		} else {
			artifact.ThumbnailLocator = thumbPath
		}
	}

	logger.Info("clip assembled",
		logging.String("locator", finalPath),
		logging.Float64("duration_seconds", artifact.DurationSeconds),
		logging.String("background", artifact.Background),
	)
	return artifact, nil
}

func (a *Assembler) clipDuration(ctx context.Context, logger *slog.Logger, audio string) time.Duration {
	if a.probe == nil {
		return a.cfg.DefaultDuration
	}
	measured, err := a.probe.Duration(ctx, audio)
	if err != nil || measured <= 0 {
		logger.Warn("audio duration unavailable; using default",
			logging.Duration("default", a.cfg.DefaultDuration),
			logging.Error(err),
		)
		measured = a.cfg.DefaultDuration
	}
	return min(measured, a.cfg.MaxDuration)
}

func (a *Assembler) checkFreeSpace() *Error {
	if a.cfg.MinFreeBytes == 0 || a.freeSpace == nil {
		return nil
	}
	free, err := a.freeSpace(a.cfg.VideoDir)
	if err != nil {
		return nil
	}
	if free < a.cfg.MinFreeBytes {
		return transient("check disk", services.Wrap(services.ErrResourceExhausted, "assemble", "disk",
			fmt.Sprintf("%d MiB free in %s, need %d MiB", free>>20, a.cfg.VideoDir, a.cfg.MinFreeBytes>>20), nil))
	}
	return nil
}

func statfsFree(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var assembleErr *Error
	if errors.As(err, &assembleErr) {
		return assembleErr, true
	}
	return nil, false
}
