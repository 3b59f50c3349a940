package preflight

import (
	"strings"

	"mailreel/internal/config"
	"mailreel/internal/deps"
	"mailreel/internal/fileutil"
	"mailreel/internal/stage"
)

// StageHealth summarizes, per pipeline stage, whether the stage can produce
// its primary result. Script and audio report unhealthy when they will only
// emit fallbacks; assemble reports unhealthy when items will fail.
func StageHealth(cfg *config.Config) []stage.Health {
	if cfg == nil {
		return nil
	}
	health := []stage.Health{stage.Healthy(string(stage.Normalize))}

	if strings.TrimSpace(cfg.Script.APIKey) == "" {
		health = append(health, stage.Unhealthy(string(stage.Script), "script api key missing; fallback narration only"))
	} else {
		health = append(health, stage.Healthy(string(stage.Script)))
	}

	switch {
	case !fileutil.NonEmptyFile(cfg.Paths.DefaultAudio):
		health = append(health, stage.Unhealthy(string(stage.Audio), "default audio missing"))
	case !cfg.Speech.Enabled:
		health = append(health, stage.Unhealthy(string(stage.Audio), "speech disabled; default audio only"))
	case strings.TrimSpace(cfg.Speech.APIKey) == "":
		health = append(health, stage.Unhealthy(string(stage.Audio), "speech api key missing; default audio only"))
	default:
		health = append(health, stage.Healthy(string(stage.Audio)))
	}

	missing := deps.MissingRequired(CheckSystemDeps(cfg))
	output := CheckDirectoryAccess("Video directory", cfg.Paths.OutputDir)
	switch {
	case len(missing) > 0:
		health = append(health, stage.Unhealthy(string(stage.Assemble), missing[0].Detail))
	case !output.Passed:
		health = append(health, stage.Unhealthy(string(stage.Assemble), output.Detail))
	default:
		health = append(health, stage.Healthy(string(stage.Assemble)))
	}
	return health
}
