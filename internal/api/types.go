package api

import (
	"mailreel/internal/preflight"
	"mailreel/internal/stage"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Artifact describes a rendered clip in a transport-friendly format.
type Artifact struct {
	MessageID        string  `json:"messageId"`
	Locator          string  `json:"locator"`
	DurationSeconds  float64 `json:"durationSeconds"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	ThumbnailLocator string  `json:"thumbnailLocator,omitempty"`
	Background       string  `json:"background,omitempty"`
}

// Failure describes a recorded item failure.
type Failure struct {
	ID        int64  `json:"id"`
	MessageID string `json:"messageId"`
	BatchID   string `json:"batchId,omitempty"`
	Stage     string `json:"stage"`
	ErrorKind string `json:"errorKind"`
	Error     string `json:"error"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ItemResult is the outcome of one message.
type ItemResult struct {
	MessageID    string    `json:"messageId"`
	Status       string    `json:"status"`
	StageReached string    `json:"stageReached"`
	ErrorKind    string    `json:"errorKind,omitempty"`
	Error        string    `json:"error,omitempty"`
	ScriptOrigin string    `json:"scriptOrigin,omitempty"`
	AudioOrigin  string    `json:"audioOrigin,omitempty"`
	Artifact     *Artifact `json:"artifact,omitempty"`
}

// BatchResult summarizes a processed batch.
type BatchResult struct {
	BatchID    string       `json:"batchId"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	DurationMs int64        `json:"durationMs"`
	StartedAt  string       `json:"startedAt,omitempty"`
	FinishedAt string       `json:"finishedAt,omitempty"`
	Items      []ItemResult `json:"items"`
}

// Summary aggregates store contents.
type Summary struct {
	Artifacts            int     `json:"artifacts"`
	Failures             int     `json:"failures"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
	LastArtifactAt       string  `json:"lastArtifactAt,omitempty"`
}

// ArtifactListResponse wraps a collection of artifacts.
type ArtifactListResponse struct {
	Items []Artifact `json:"items"`
}

// ArtifactResponse wraps a single artifact.
type ArtifactResponse struct {
	Item Artifact `json:"item"`
}

// FailureListResponse wraps a collection of failures.
type FailureListResponse struct {
	Items []Failure `json:"items"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DatabaseHealth reports store diagnostics.
type DatabaseHealth struct {
	Path           string `json:"path"`
	SchemaVersion  int    `json:"schemaVersion"`
	IntegrityCheck bool   `json:"integrityCheck"`
	Error          string `json:"error,omitempty"`
}

// PipelineHealth aggregates readiness information for API consumers.
type PipelineHealth struct {
	Ready    bool               `json:"ready"`
	Stages   []StageHealth      `json:"stages"`
	Checks   []preflight.Result `json:"checks"`
	Database *DatabaseHealth    `json:"database,omitempty"`
	Summary  *Summary           `json:"summary,omitempty"`
}

// StatusResponse is the liveness payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
	PID     int    `json:"pid"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromStageHealth converts stage readiness records.
func FromStageHealth(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}
