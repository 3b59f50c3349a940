package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mailreel/internal/assembly"
)

// Option values inside -filter_complex are unescaped twice: once by the
// filtergraph parser and once by the filter's option parser. optionEscaper
// and graphEscaper apply those levels in reverse order.
var (
	optionEscaper = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
	)
	graphEscaper = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
	overlayCleaner = strings.NewReplacer(
		`'`, "’",
		"\r\n", " ",
		"\n", " ",
		"\r", " ",
	)
)

// EscapeFilterValue escapes value for use as an option value of a filter
// inside a filtergraph description.
func EscapeFilterValue(value string) string {
	return graphEscaper.Replace(optionEscaper.Replace(value))
}

// EscapeDrawtext prepares overlay text for the drawtext filter. Text
// expansion is disabled on the filter, so '%' needs no escaping.
func EscapeDrawtext(text string) string {
	return EscapeFilterValue(overlayCleaner.Replace(strings.TrimSpace(text)))
}

// BuildMuxArgs returns the ffmpeg arguments (without the binary) for req.
func BuildMuxArgs(req assembly.MuxRequest, fontFile string) []string {
	args := make([]string, 0, 48)
	args = append(args, "-hide_banner", "-nostdin", "-y", "-loglevel", "error")

	if req.Background != "" {
		args = append(args, "-stream_loop", "-1", "-i", req.Background)
	} else {
		color := req.BackgroundColor
		if color == "" {
			color = "0x1d3557"
		}
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", color, req.Width, req.Height, req.FPS))
	}
	args = append(args, "-i", req.Audio)

	args = append(args,
		"-filter_complex", videoFilter(req, fontFile),
		"-map", "[v]",
		"-map", "1:a:0",
		"-t", formatSeconds(req.Duration),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(req.FPS),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-f", "mp4",
		req.Output,
	)
	return args
}

func videoFilter(req assembly.MuxRequest, fontFile string) string {
	w, h := req.Width, req.Height
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
		fmt.Sprintf("crop=%d:%d", w, h),
		"setsar=1",
		fmt.Sprintf("fps=%d", req.FPS),
	}
	if text := EscapeDrawtext(req.Overlay.Sender); text != "" {
		filters = append(filters, drawtext(text, fontFile, h/18, "h*0.10"))
	}
	if text := EscapeDrawtext(req.Overlay.Subject); text != "" {
		filters = append(filters, drawtext(text, fontFile, h/24, "h*0.85"))
	}
	return "[0:v]" + strings.Join(filters, ",") + "[v]"
}

func drawtext(text, fontFile string, size int, y string) string {
	opts := []string{
		"text=" + text,
		"expansion=none",
		"fontcolor=white",
		"fontsize=" + strconv.Itoa(size),
		"borderw=4",
		"bordercolor=black",
		"x=(w-text_w)/2",
		"y=" + y,
	}
	if fontFile != "" {
		opts = append([]string{"fontfile=" + EscapeFilterValue(fontFile)}, opts...)
	}
	return "drawtext=" + strings.Join(opts, ":")
}

// BuildThumbnailArgs returns the ffmpeg arguments that grab one frame at at.
func BuildThumbnailArgs(video, out string, at time.Duration) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-ss", formatSeconds(at),
		"-i", video,
		"-frames:v", "1",
		"-q:v", "3",
		out,
	}
}

// BuildSilenceArgs returns the ffmpeg arguments that write silent mp3 audio.
func BuildSilenceArgs(out string, length time.Duration) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", formatSeconds(length),
		"-c:a", "libmp3lame",
		"-q:a", "9",
		out,
	}
}

func formatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
