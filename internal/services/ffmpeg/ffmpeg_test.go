package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"mailreel/internal/assembly"
	"mailreel/internal/logging"
	"mailreel/internal/services"
)

func sampleRequest() assembly.MuxRequest {
	return assembly.MuxRequest{
		Background: "/assets/backgrounds/work.mp4",
		Audio:      "/audio/m1.mp3",
		Overlay:    assembly.Overlay{Sender: "Boss", Subject: "Meeting: 3pm, room 4"},
		Output:     "/videos/.tmp-m1-x.mp4",
		Width:      1080,
		Height:     1920,
		Duration:   7500 * time.Millisecond,
		FPS:        30,
	}
}

func valueAfter(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestBuildMuxArgsLoopsBackground(t *testing.T) {
	args := BuildMuxArgs(sampleRequest(), "")

	if valueAfter(args, "-stream_loop") != "-1" {
		t.Fatalf("expected looped background: %v", args)
	}
	if valueAfter(args, "-t") != "7.500" {
		t.Fatalf("expected trim to audio duration, got %q", valueAfter(args, "-t"))
	}
	if valueAfter(args, "-c:v") != "libx264" || valueAfter(args, "-c:a") != "aac" {
		t.Fatalf("unexpected codecs: %v", args)
	}
	if args[len(args)-1] != "/videos/.tmp-m1-x.mp4" {
		t.Fatalf("output must be last, got %q", args[len(args)-1])
	}

	filter := valueAfter(args, "-filter_complex")
	for _, want := range []string{
		"scale=1080:1920:force_original_aspect_ratio=increase",
		"crop=1080:1920",
		"text=Boss",
		`text=Meeting\\: 3pm\, room 4`,
		"expansion=none",
		"y=h*0.10",
		"y=h*0.85",
	} {
		if !strings.Contains(filter, want) {
			t.Fatalf("filter missing %q: %s", want, filter)
		}
	}
}

func TestBuildMuxArgsSolidColour(t *testing.T) {
	req := sampleRequest()
	req.Background = ""
	req.BackgroundColor = "0x112233"
	args := BuildMuxArgs(req, "/fonts/Inter.ttf")

	if slices.Contains(args, "-stream_loop") {
		t.Fatalf("colour source must not loop: %v", args)
	}
	if got := valueAfter(args, "-f"); got != "lavfi" {
		t.Fatalf("expected lavfi input, got %q", got)
	}
	if !slices.Contains(args, "color=c=0x112233:s=1080x1920:r=30") {
		t.Fatalf("missing colour source: %v", args)
	}
	if !strings.Contains(valueAfter(args, "-filter_complex"), `fontfile=/fonts/Inter.ttf`) {
		t.Fatal("expected font file in drawtext")
	}
}

func TestEscapeDrawtext(t *testing.T) {
	got := EscapeDrawtext("It's 50%: done, [ok]")
	want := `It’s 50%\\: done\, \[ok\]`
	if got != want {
		t.Fatalf("EscapeDrawtext = %q, want %q", got, want)
	}
}

// nextToken follows ffmpeg's av_get_token: a backslash escapes the next
// byte, single quotes protect a span, unescaped trailing whitespace is
// dropped, and reading stops at any byte in term.
func nextToken(s, term string) (string, string) {
	s = strings.TrimLeft(s, " \t\r\n")
	var out []byte
	keep := 0
	i := 0
	for i < len(s) && !strings.ContainsRune(term, rune(s[i])) {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				out = append(out, s[i+1])
			}
			i += 2
			keep = len(out)
		case '\'':
			i++
			for i < len(s) && s[i] != '\'' {
				out = append(out, s[i])
				i++
			}
			i++
			keep = len(out)
		default:
			out = append(out, s[i])
			if !strings.ContainsRune(" \t\r\n", rune(s[i])) {
				keep = len(out)
			}
			i++
		}
	}
	if i > len(s) {
		i = len(s)
	}
	return string(out[:keep]), s[i:]
}

// drawtextOptions decodes the options of the last drawtext filter in graph
// the way the filtergraph and option parsers see them.
func drawtextOptions(t *testing.T, graph string) map[string]string {
	t.Helper()
	idx := strings.LastIndex(graph, "drawtext=")
	if idx < 0 {
		t.Fatalf("no drawtext in %s", graph)
	}
	args, _ := nextToken(graph[idx+len("drawtext="):], "[],;")
	opts := map[string]string{}
	for args != "" {
		eq := strings.IndexByte(args, '=')
		if eq < 0 {
			t.Fatalf("option without value in %q", args)
		}
		key := args[:eq]
		var value string
		value, args = nextToken(args[eq+1:], ":")
		opts[key] = value
		args = strings.TrimPrefix(args, ":")
	}
	return opts
}

func TestDrawtextSurvivesFiltergraphParsing(t *testing.T) {
	subjects := map[string]string{
		"Re: Q3 planning":            "Re: Q3 planning",
		"50% off, today only":        "50% off, today only",
		`C:\temp [draft]; it's done`: `C:\temp [draft]; it’s done`,
		"line one\nline two":         "line one line two",
	}
	for subject, want := range subjects {
		req := sampleRequest()
		req.Overlay.Subject = subject
		opts := drawtextOptions(t, valueAfter(BuildMuxArgs(req, "/fonts/Odd:Name's.ttf"), "-filter_complex"))
		if opts["text"] != want {
			t.Fatalf("subject %q decoded as %q, want %q", subject, opts["text"], want)
		}
		if opts["expansion"] != "none" {
			t.Fatalf("subject %q: expansion = %q", subject, opts["expansion"])
		}
		if opts["fontfile"] != "/fonts/Odd:Name's.ttf" {
			t.Fatalf("fontfile decoded as %q", opts["fontfile"])
		}
		if opts["y"] != "h*0.85" {
			t.Fatalf("subject %q: trailing options lost: %v", subject, opts)
		}
	}
}

func TestClassifyRun(t *testing.T) {
	ctx := context.Background()
	runErr := errors.New("exit status 1")
	tests := []struct {
		stderr string
		marker error
	}{
		{"av_interleaved_write_frame(): No space left on device", services.ErrResourceExhausted},
		{"Cannot allocate memory", services.ErrResourceExhausted},
		{"Connection reset by peer", services.ErrTransient},
		{"/audio/m1.mp3: Invalid data found when processing input", services.ErrValidation},
		{"something odd happened", services.ErrExternalTool},
	}
	for _, tt := range tests {
		err := classifyRun(ctx, "mux", tt.stderr, runErr)
		if !errors.Is(err, tt.marker) {
			t.Fatalf("stderr %q: expected %v, got %v", tt.stderr, tt.marker, err)
		}
	}
}

func TestClassifyRunDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err := classifyRun(ctx, "mux", "", errors.New("signal: killed"))
	if !errors.Is(err, services.ErrTimeout) || !services.IsRetryable(err) {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
}

func writeStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires unix")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestMuxerRunsBinary(t *testing.T) {
	// The stub writes its last argument, which is always the output path.
	stub := writeStub(t, `for last; do :; done; echo video > "$last"`+"\n")
	dir := t.TempDir()
	req := sampleRequest()
	req.Output = filepath.Join(dir, "out.mp4")

	m := New(stub, "", time.Second, logging.NewNop())
	if err := m.Mux(context.Background(), req); err != nil {
		t.Fatalf("Mux: %v", err)
	}
	if _, err := os.Stat(req.Output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if err := m.Thumbnail(context.Background(), req.Output, filepath.Join(dir, "out.jpg"), 2*time.Second); err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if err := m.SilentAudio(context.Background(), filepath.Join(dir, "silence.mp3"), 3*time.Second); err != nil {
		t.Fatalf("SilentAudio: %v", err)
	}
}

func TestMuxerReportsFailure(t *testing.T) {
	stub := writeStub(t, "echo 'Resource temporarily unavailable' >&2\nexit 1\n")
	m := New(stub, "", time.Second, logging.NewNop())
	err := m.Mux(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Classify(err) != services.KindTransient {
		t.Fatalf("expected transient failure, got %v", err)
	}
}
