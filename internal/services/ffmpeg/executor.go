package ffmpeg

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mailreel/internal/assembly"
	"mailreel/internal/logging"
)

// Muxer runs ffmpeg to render clips and thumbnails.
type Muxer struct {
	binary   string
	fontFile string
	timeout  time.Duration
	logger   *slog.Logger
}

// New constructs a Muxer. timeout bounds each invocation when positive.
func New(binary, fontFile string, timeout time.Duration, logger *slog.Logger) *Muxer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Muxer{
		binary:   binary,
		fontFile: strings.TrimSpace(fontFile),
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Mux renders the clip described by req.
func (m *Muxer) Mux(ctx context.Context, req assembly.MuxRequest) error {
	return m.run(ctx, "mux", BuildMuxArgs(req, m.fontFile))
}

// Thumbnail writes a single frame from video at the given offset.
func (m *Muxer) Thumbnail(ctx context.Context, video, out string, at time.Duration) error {
	return m.run(ctx, "thumbnail", BuildThumbnailArgs(video, out, at))
}

// SilentAudio writes length of silent mp3 audio to out.
func (m *Muxer) SilentAudio(ctx context.Context, out string, length time.Duration) error {
	return m.run(ctx, "silence", BuildSilenceArgs(out, length))
}

func (m *Muxer) run(ctx context.Context, op string, args []string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, m.logger)

	cmd := exec.CommandContext(ctx, m.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	logger.Debug("ffmpeg started", logging.String("operation", op), logging.Any("args", args))
	if err := cmd.Run(); err != nil {
		classified := classifyRun(ctx, op, stderr.String(), err)
		logger.Debug("ffmpeg failed",
			logging.String("operation", op),
			logging.Duration("elapsed", time.Since(started)),
			logging.String("stderr", lastLine(stderr.String())),
			logging.Error(classified),
		)
		return classified
	}
	logger.Debug("ffmpeg completed", logging.String("operation", op), logging.Duration("elapsed", time.Since(started)))
	return nil
}
