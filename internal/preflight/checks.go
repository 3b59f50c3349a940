package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mailreel/internal/config"
	"mailreel/internal/deps"
	"mailreel/internal/fileutil"
)

const remoteCheckTimeout = 30 * time.Second

// CheckRemote verifies that a provider API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckRemote(ctx context.Context, name string, checker HealthChecker) Result {
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()

	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckAPIKey reports whether a provider key is configured. The key itself is
// never echoed.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "not configured; fallback output only"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDefaultAudio verifies the fallback narration file is present. Every
// item whose speech synthesis fails is assembled from it.
func CheckDefaultAudio(path string) Result {
	const name = "Default audio"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if !fileutil.NonEmptyFile(path) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing or empty; run 'mailreel assets init')", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckFreeSpace compares the free space under path with minMB.
func CheckFreeSpace(name, path string, minMB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeMB := stat.Bavail * uint64(stat.Bsize) >> 20
	detail := fmt.Sprintf("%d MiB free", freeMB)
	if minMB > 0 && freeMB < uint64(minMB) {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %d MiB", detail, minMB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the binaries the assembler runs. Both the daemon
// and the CLI health command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckFFmpegSuite(cfg.FFmpegBinary(), cfg.FFprobeBinary())
}

// summarizeRemoteError produces a human-readable summary for provider health
// check failures.
func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
