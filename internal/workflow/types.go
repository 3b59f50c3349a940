package workflow

import (
	"context"
	"errors"
	"time"

	"mailreel/internal/stage"
	"mailreel/internal/store"
)

// Status is the terminal state of one item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Error kinds reported on failed outcomes in addition to the transient and
// permanent service kinds.
const (
	KindTransient = "transient"
	KindPermanent = "permanent"
	KindCancelled = "cancelled"
	KindInternal  = "internal"
)

// ErrDedupUnavailable aborts a batch when the known-id set cannot be loaded.
var ErrDedupUnavailable = errors.New("dedup set unavailable")

// Outcome is the result of processing one message.
type Outcome struct {
	MessageID    string          `json:"messageId"`
	Status       Status          `json:"status"`
	Artifact     *store.Artifact `json:"artifact,omitempty"`
	ErrorKind    string          `json:"errorKind,omitempty"`
	StageReached stage.Name      `json:"stageReached"`
	Error        string          `json:"error,omitempty"`
	ScriptOrigin stage.Origin    `json:"scriptOrigin,omitempty"`
	AudioOrigin  stage.Origin    `json:"audioOrigin,omitempty"`
}

// Succeeded reports whether the outcome produced an artifact.
func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// Report aggregates the outcomes of one batch. Total counts processed items
// only; de-duplicated inputs are counted in Skipped.
type Report struct {
	BatchID    string    `json:"batchId"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns the wall time the batch took.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the persistence the coordinator needs.
type Store interface {
	Exists(ctx context.Context, messageID string) (bool, error)
	UpsertArtifact(ctx context.Context, artifact store.Artifact) error
	ListKnownIDs(ctx context.Context) (map[string]struct{}, error)
	RecordFailure(ctx context.Context, failure store.Failure) error
}
