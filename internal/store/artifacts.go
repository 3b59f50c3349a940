package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const artifactColumns = "message_id, locator, duration_seconds, width, height, thumbnail_locator, background, created_at"

// UpsertArtifact records a; an existing row for the same message id is kept
// unchanged, so repeated writes for one message are harmless.
func (s *Store) UpsertArtifact(ctx context.Context, a Artifact) error {
	if strings.TrimSpace(a.MessageID) == "" {
		return errors.New("artifact message id is empty")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO artifacts (`+artifactColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(message_id) DO NOTHING`,
		a.MessageID,
		a.Locator,
		a.DurationSeconds,
		a.Width,
		a.Height,
		nullableString(a.ThumbnailLocator),
		nullableString(a.Background),
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

// Exists reports whether an artifact exists for messageID.
func (s *Store) Exists(ctx context.Context, messageID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM artifacts WHERE message_id = ?", messageID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("artifact exists: %w", err)
	}
	return count > 0, nil
}

// ListKnownIDs returns every message id that already has an artifact.
func (s *Store) ListKnownIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT message_id FROM artifacts")
	if err != nil {
		return nil, fmt.Errorf("list known ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan known id: %w", err)
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// GetArtifact fetches one artifact. It returns nil when none exists.
func (s *Store) GetArtifact(ctx context.Context, messageID string) (*Artifact, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+artifactColumns+` FROM artifacts WHERE message_id = ?`, messageID)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// ListArtifacts returns the newest artifacts first.
func (s *Store) ListArtifacts(ctx context.Context, limit int) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+artifactColumns+` FROM artifacts ORDER BY created_at DESC, message_id LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, *artifact)
	}
	return artifacts, rows.Err()
}

// DeleteArtifact removes the record for messageID so the next batch renders
// it again. It reports whether a row was removed. Files on disk are left to
// the caller.
func (s *Store) DeleteArtifact(ctx context.Context, messageID string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM artifacts WHERE message_id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("delete artifact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*Artifact, error) {
	var (
		a          Artifact
		thumbnail  sql.NullString
		background sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&a.MessageID,
		&a.Locator,
		&a.DurationSeconds,
		&a.Width,
		&a.Height,
		&thumbnail,
		&background,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	a.ThumbnailLocator = thumbnail.String
	a.Background = background.String
	a.CreatedAt = parseTime(createdRaw)
	return &a, nil
}
