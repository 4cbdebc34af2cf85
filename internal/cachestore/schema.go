package cachestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion changes whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch is returned by Open for a cache written by another layout.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// migrate applies schema.sql (every statement is IF NOT EXISTS) and stamps the
// version on first use. An existing cache with a different version is refused
// rather than rewritten.
func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	switch err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("stamp schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: %s has version %d, want %d; delete it to rebuild the cache",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return tx.Commit()
}
