package deps

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveBinary returns the absolute path for binary when it can be found,
// otherwise the trimmed name. Names containing a path separator are used
// as-is.
func ResolveBinary(binary string) string {
	name := strings.TrimSpace(binary)
	if name == "" {
		return ""
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved
	}
	return name
}

// CheckFFmpegSuite reports the muxer and probe binaries used for assembly.
func CheckFFmpegSuite(ffmpegBinary, ffprobeBinary string) []Status {
	return CheckBinaries([]Requirement{
		{
			Name:        "FFmpeg",
			Command:     ResolveBinary(ffmpegBinary),
			Description: "Required for clip assembly and thumbnails",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveBinary(ffprobeBinary),
			Description: "Measures narration length; clips fall back to the default duration without it",
			Optional:    true,
		},
	})
}
