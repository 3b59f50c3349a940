// Package api defines wire-format types and converters for the HTTP API and
// the CLI's --json output. It translates store and workflow models into
// transport-friendly DTOs so consumers do not couple to internal types.
//
// # Key Types
//
// Artifact: a rendered clip with its locator, geometry, and thumbnail.
//
// Failure: a recorded item failure with stage and error kind.
//
// BatchResult/ItemResult: the outcome of a batch or a single message.
//
// PipelineHealth: preflight results, per-stage readiness, and database checks.
//
// # Converters
//
// FromArtifact, FromFailure, FromOutcome, FromReport map internal models to
// DTOs. ArtifactService wraps the store for read-only queries.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Durations are reported in milliseconds.
package api
