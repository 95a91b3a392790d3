package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

// schemaSQL creates the base layout at baseVersion. Later changes go in
// migrations so existing databases are upgraded in place.
//
//go:embed schema.sql
var schemaSQL string

const baseVersion = 1

// migrations[i] upgrades a database from baseVersion+i to baseVersion+i+1.
var migrations = []string{
	// The (job, number) primary key already serves newest-first history scans.
	"DROP INDEX IF EXISTS idx_builds_job_number",
}

// schemaVersion is the version a fully migrated database reports.
var schemaVersion = baseVersion + len(migrations)

// ErrSchemaMismatch indicates the database was written by a newer build.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version, err := readSchemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: database has version %d, this build supports up to %d (%s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	if version == schemaVersion {
		return tx.Commit()
	}

	if version == 0 {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", baseVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		version = baseVersion
	}
	for ; version < schemaVersion; version++ {
		if _, err := tx.ExecContext(ctx, migrations[version-baseVersion]); err != nil {
			return fmt.Errorf("migrate schema to version %d: %w", version+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", version); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// readSchemaVersion returns 0 for an empty database.
func readSchemaVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var tableExists int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return 0, nil
	}

	var version int
	if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
