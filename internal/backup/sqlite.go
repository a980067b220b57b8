package backup

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/signerstate/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added saves audit table
const currentSchemaVersion = 1

// SQLite is a Backend stored in a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite backup at path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - FULL synchronous mode (signer state must survive power loss)
//   - 5-second busy timeout for lock contention
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection. Further calls are no-ops.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// The v1 saves table is created by schema.sql; nothing to backfill.

	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// Save replaces the stored snapshot with records in one transaction.
func (s *SQLite) Save(ctx context.Context, records []state.Record) (SaveResult, error) {
	var res SaveResult
	for _, r := range records {
		if err := checkVersion(r); err != nil {
			return res, fmt.Errorf("save: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("save: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stored, err := storedVersions(ctx, tx)
	if err != nil {
		return res, fmt.Errorf("save: %w", err)
	}

	keep := make(map[state.Key]bool, len(records))
	for _, r := range records {
		keep[r.Key] = true
		old, ok := stored[r.Key]
		switch {
		case ok && old > r.Version:
			res.Stale = append(res.Stale, r.Key)
			continue
		case ok && old == r.Version:
			continue
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (key, version, value)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET version = excluded.version, value = excluded.value
		`, string(r.Key), int64(r.Version), nonNil(r.Value))
		if err != nil {
			return res, fmt.Errorf("save: write %s: %w", r.Key, err)
		}
		res.Written++
	}

	for k := range stored {
		if keep[k] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, string(k)); err != nil {
			return res, fmt.Errorf("save: delete %s: %w", k, err)
		}
		res.Deleted++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO saves (entries, written, deleted) VALUES (?, ?, ?)
	`, len(records), res.Written, res.Deleted)
	if err != nil {
		return res, fmt.Errorf("save: audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("save: commit: %w", err)
	}
	return res, nil
}

func storedVersions(ctx context.Context, tx *sql.Tx) (map[state.Key]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT key, version FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("read versions: %w", err)
	}
	defer rows.Close()

	out := make(map[state.Key]uint64)
	for rows.Next() {
		var key string
		var version int64
		if err := rows.Scan(&key, &version); err != nil {
			return nil, fmt.Errorf("read versions: %w", err)
		}
		out[state.Key(key)] = uint64(version)
	}
	return out, rows.Err()
}

// Load returns every stored entry ordered by key.
func (s *SQLite) Load(ctx context.Context) ([]state.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, version, value FROM entries ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer rows.Close()

	var records []state.Record
	for rows.Next() {
		var key string
		var version int64
		var value []byte
		if err := rows.Scan(&key, &version, &value); err != nil {
			return nil, fmt.Errorf("load: scan: %w", err)
		}
		records = append(records, state.Record{Key: state.Key(key), Version: uint64(version), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return records, nil
}

// SaveCount returns how many saves have been recorded.
func (s *SQLite) SaveCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saves`).Scan(&n); err != nil {
		return 0, fmt.Errorf("save count: %w", err)
	}
	return n, nil
}

// nonNil keeps empty values out of the NOT NULL constraint's way.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
