package api

import (
	"context"

	"mailreel/internal/store"
)

// ArtifactReader abstracts the store queries needed for API reads.
type ArtifactReader interface {
	ListArtifacts(ctx context.Context, limit int) ([]store.Artifact, error)
	GetArtifact(ctx context.Context, messageID string) (*store.Artifact, error)
	ListFailures(ctx context.Context, limit int) ([]store.Failure, error)
	Stats(ctx context.Context) (store.Summary, error)
}

// ArtifactService exposes read-only store operations returning API DTOs.
type ArtifactService struct {
	store ArtifactReader
}

// NewArtifactService constructs an ArtifactService around the provided reader.
func NewArtifactService(reader ArtifactReader) *ArtifactService {
	if reader == nil {
		return nil
	}
	return &ArtifactService{store: reader}
}

// List returns the most recent artifacts, newest first.
func (s *ArtifactService) List(ctx context.Context, limit int) ([]Artifact, error) {
	if s == nil || s.store == nil {
		return []Artifact{}, nil
	}
	artifacts, err := s.store.ListArtifacts(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromArtifacts(artifacts), nil
}

// Describe fetches a single artifact. A missing artifact yields nil, nil.
func (s *ArtifactService) Describe(ctx context.Context, messageID string) (*Artifact, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	artifact, err := s.store.GetArtifact(ctx, messageID)
	if err != nil || artifact == nil {
		return nil, err
	}
	dto := FromArtifact(*artifact)
	return &dto, nil
}

// Failures returns the most recent failure records.
func (s *ArtifactService) Failures(ctx context.Context, limit int) ([]Failure, error) {
	if s == nil || s.store == nil {
		return []Failure{}, nil
	}
	failures, err := s.store.ListFailures(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromFailures(failures), nil
}

// Summary returns aggregate store counts.
func (s *ArtifactService) Summary(ctx context.Context) (Summary, error) {
	if s == nil || s.store == nil {
		return Summary{}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	return FromSummary(stats), nil
}
