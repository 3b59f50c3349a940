// Package ffprobe wraps ffprobe JSON output for the clip assembler.
//
// Inspect runs ffprobe against a file and decodes the streams and container
// format. Prober adapts Inspect to the duration probe the assembler uses to
// size clips to their narration audio.
package ffprobe
