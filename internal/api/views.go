package api

import (
	"time"

	"mailreel/internal/store"
	"mailreel/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromArtifact converts a store artifact to its API representation.
func FromArtifact(a store.Artifact) Artifact {
	return Artifact{
		MessageID:        a.MessageID,
		Locator:          a.Locator,
		DurationSeconds:  a.DurationSeconds,
		Width:            a.Width,
		Height:           a.Height,
		CreatedAt:        formatTime(a.CreatedAt),
		ThumbnailLocator: a.ThumbnailLocator,
		Background:       a.Background,
	}
}

// FromArtifacts converts a slice of artifacts. The result is never nil so it
// encodes as an empty JSON array.
func FromArtifacts(artifacts []store.Artifact) []Artifact {
	out := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, FromArtifact(a))
	}
	return out
}

// FromFailure converts a store failure record.
func FromFailure(f store.Failure) Failure {
	return Failure{
		ID:        f.ID,
		MessageID: f.MessageID,
		BatchID:   f.BatchID,
		Stage:     f.Stage,
		ErrorKind: f.ErrorKind,
		Error:     f.Error,
		CreatedAt: formatTime(f.CreatedAt),
	}
}

// FromFailures converts a slice of failures.
func FromFailures(failures []store.Failure) []Failure {
	out := make([]Failure, 0, len(failures))
	for _, f := range failures {
		out = append(out, FromFailure(f))
	}
	return out
}

// FromOutcome converts a workflow outcome.
func FromOutcome(o workflow.Outcome) ItemResult {
	result := ItemResult{
		MessageID:    o.MessageID,
		Status:       string(o.Status),
		StageReached: string(o.StageReached),
		ErrorKind:    o.ErrorKind,
		Error:        o.Error,
		ScriptOrigin: string(o.ScriptOrigin),
		AudioOrigin:  string(o.AudioOrigin),
	}
	if o.Artifact != nil {
		artifact := FromArtifact(*o.Artifact)
		result.Artifact = &artifact
	}
	return result
}

// FromReport converts a batch report.
func FromReport(r workflow.Report) BatchResult {
	items := make([]ItemResult, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		items = append(items, FromOutcome(o))
	}
	return BatchResult{
		BatchID:    r.BatchID,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		DurationMs: r.Duration().Milliseconds(),
		StartedAt:  formatTime(r.StartedAt),
		FinishedAt: formatTime(r.FinishedAt),
		Items:      items,
	}
}

// FromSummary converts store statistics.
func FromSummary(s store.Summary) Summary {
	return Summary{
		Artifacts:            s.Artifacts,
		Failures:             s.Failures,
		TotalDurationSeconds: s.TotalDurationSeconds,
		LastArtifactAt:       formatTime(s.LastArtifactAt),
	}
}

// FromDatabaseHealth converts store diagnostics.
func FromDatabaseHealth(h store.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		Path:           h.DBPath,
		SchemaVersion:  h.SchemaVersion,
		IntegrityCheck: h.IntegrityCheck,
		Error:          h.Error,
	}
}
