package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"

	"mailreel/internal/services"
)

// Pre-compiled patterns for classifying ffmpeg stderr output.
var (
	reResourceExhausted = regexp.MustCompile(
		`(?i)Resource temporarily unavailable|Cannot allocate memory|` +
			`No space left on device|Too many open files`)

	reTransientIO = regexp.MustCompile(
		`(?i)Connection (reset|refused|timed out)|Broken pipe|` +
			`Input/output error|Server returned 5\d\d`)

	reInvalidInput = regexp.MustCompile(
		`(?i)No such file or directory|Invalid data found when processing input|` +
			`does not contain any stream|Invalid argument|` +
			`Error opening input|could not find codec parameters|moov atom not found`)
)

// classifyRun maps an ffmpeg invocation failure onto a services marker.
func classifyRun(ctx context.Context, op string, stderr string, err error) error {
	if err == nil {
		return nil
	}
	detail := lastLine(stderr)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "ffmpeg", op, "deadline exceeded", ctx.Err())
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(services.ErrConfiguration, "ffmpeg", op, "binary not found", err)
	case reResourceExhausted.MatchString(stderr):
		return services.Wrap(services.ErrResourceExhausted, "ffmpeg", op, detail, err)
	case reTransientIO.MatchString(stderr):
		return services.Wrap(services.ErrTransient, "ffmpeg", op, detail, err)
	case reInvalidInput.MatchString(stderr):
		return services.Wrap(services.ErrValidation, "ffmpeg", op, detail, err)
	}
	return services.Wrap(services.ErrExternalTool, "ffmpeg", op, detail, err)
}

func lastLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
