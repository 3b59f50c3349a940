package store

import "time"

// Artifact describes a rendered clip. It is created once per message and
// never mutated afterwards.
type Artifact struct {
	MessageID        string    `json:"messageId"`
	Locator          string    `json:"locator"`
	DurationSeconds  float64   `json:"durationSeconds"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	CreatedAt        time.Time `json:"createdAt"`
	ThumbnailLocator string    `json:"thumbnailLocator,omitempty"`
	Background       string    `json:"background,omitempty"`
}

// Failure records a message that could not be turned into a clip.
type Failure struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"messageId"`
	BatchID   string    `json:"batchId,omitempty"`
	Stage     string    `json:"stage"`
	ErrorKind string    `json:"errorKind"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary aggregates store contents for status output.
type Summary struct {
	Artifacts            int       `json:"artifacts"`
	Failures             int       `json:"failures"`
	TotalDurationSeconds float64   `json:"totalDurationSeconds"`
	LastArtifactAt       time.Time `json:"lastArtifactAt,omitzero"`
}

// DatabaseHealth captures diagnostic details about the backing database.
type DatabaseHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	SchemaVersion    int    `json:"schemaVersion"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	Error            string `json:"error,omitempty"`
}
