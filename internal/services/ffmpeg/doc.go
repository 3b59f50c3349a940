// Package ffmpeg renders clips, thumbnails, and placeholder audio with the
// ffmpeg binary.
//
// BuildMuxArgs assembles the full command for a clip: a looped (or solid
// colour) background scaled and cropped to the target frame, sender and
// subject overlays, and the narration track, encoded as H.264/AAC. Failures
// are classified from ffmpeg's stderr so callers can tell resource pressure
// from bad input.
package ffmpeg
