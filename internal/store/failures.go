package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// RecordFailure appends a failure record for operator diagnosis.
func (s *Store) RecordFailure(ctx context.Context, f Failure) error {
	if strings.TrimSpace(f.MessageID) == "" {
		return errors.New("failure message id is empty")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO failures (message_id, batch_id, stage, error_kind, error_message, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		f.MessageID,
		nullableString(f.BatchID),
		f.Stage,
		f.ErrorKind,
		nullableString(f.Error),
		formatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// ListFailures returns the most recent failures first.
func (s *Store) ListFailures(ctx context.Context, limit int) ([]Failure, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, message_id, batch_id, stage, error_kind, error_message, created_at
        FROM failures ORDER BY id DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			f          Failure
			batchID    sql.NullString
			message    sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.MessageID, &batchID, &f.Stage, &f.ErrorKind, &message, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.BatchID = batchID.String
		f.Error = message.String
		f.CreatedAt = parseTime(createdRaw)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
