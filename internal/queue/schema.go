package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. A fresh database reports 0.
// There are no migrations: a different version means the queue file has to
// be removed, which loses unsynced writes, so the error names the file.
const schemaVersion = 1

// ErrSchemaMismatch is returned by Open when the file was written by another
// schema version.
var ErrSchemaMismatch = errors.New("queue schema version mismatch")

func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read queue schema version: %w", err)
	}
	switch current {
	case schemaVersion:
		return nil
	case 0:
		return s.install(ctx)
	default:
		return fmt.Errorf("%w: %s has version %d, this build uses %d",
			ErrSchemaMismatch, s.path, current, schemaVersion)
	}
}

func (s *Store) install(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema install: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("install queue schema: %w", err)
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp queue schema version: %w", err)
	}
	return tx.Commit()
}
