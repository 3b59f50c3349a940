package preflight

import (
	"context"
	"strings"

	"mailreel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// HealthChecker is implemented by provider clients that can verify their
// credentials with a cheap request.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Remote names a provider client to check.
type Remote struct {
	Name    string
	Checker HealthChecker
}

// RunAll executes the local checks for cfg followed by the remote checks.
func RunAll(ctx context.Context, cfg *config.Config, remotes ...Remote) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Video directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir),
		CheckDefaultAudio(cfg.Paths.DefaultAudio),
		CheckFreeSpace("Video disk space", cfg.Paths.OutputDir, cfg.Video.MinFreeMB),
	}

	for _, dep := range CheckSystemDeps(cfg) {
		results = append(results, Result{
			Name:     dep.Name,
			Passed:   dep.Available,
			Detail:   firstNonEmpty(dep.Detail, dep.Command),
			Optional: dep.Optional,
		})
	}

	scriptKey := CheckAPIKey("Script API key", cfg.Script.APIKey)
	scriptKey.Optional = true
	results = append(results, scriptKey)
	if cfg.Speech.Enabled {
		speechKey := CheckAPIKey("Speech API key", cfg.Speech.APIKey)
		speechKey.Optional = true
		results = append(results, speechKey)
	}

	for _, remote := range remotes {
		if remote.Checker == nil {
			continue
		}
		result := CheckRemote(ctx, remote.Name, remote.Checker)
		result.Optional = true
		results = append(results, result)
	}
	return results
}

// Ready reports whether every required check passed. Optional checks only
// affect the quality of the output, since their stages fall back.
func Ready(results []Result) bool {
	for _, result := range results {
		if !result.Passed && !result.Optional {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
