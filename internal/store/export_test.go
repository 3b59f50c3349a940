package store

import "context"

// ForceSchemaVersionForTest overwrites the recorded schema version.
func (s *Store) ForceSchemaVersionForTest(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, "UPDATE schema_version SET version = ?", version)
	return err
}
