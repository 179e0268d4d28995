// Package sqlitestore keeps serialized graphs as rows of a SQLite table, one
// row per named slot.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hengadev/miscutils"
)

// DefaultTable is the table New uses when none is given.
const DefaultTable = "miscutils_slots"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens the SQLite database at path, creating its directory.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path cannot be empty", miscutils.ErrInvalidConfiguration)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", miscutils.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database at '%s': %w", miscutils.ErrStorageUnavailable, path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: database connection test failed for '%s': %w", miscutils.ErrStorageUnavailable, path, err)
	}
	return db, nil
}

// Store is a miscutils.Store on the row called name.
type Store struct {
	db    *sql.DB
	table string
	name  string
}

// New returns a store on the row name of table, creating the table when it
// does not exist. An empty table means DefaultTable.
func New(ctx context.Context, db *sql.DB, table, name string) (*Store, error) {
	if db == nil {
		return nil, miscutils.ErrNilStore
	}
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", miscutils.ErrInvalidConfiguration, table)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: slot name cannot be empty", miscutils.ErrInvalidConfiguration)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: create table %s: %w", miscutils.ErrStorageUnavailable, table, err)
	}

	return &Store{db: db, table: table, name: name}, nil
}

// Name returns the row the store reads and writes.
func (s *Store) Name() string { return s.name }

func (s *Store) ReadBytes(ctx context.Context) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE name = ?`, s.table), s.name)
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read slot '%s': %w", miscutils.ErrStorageUnavailable, s.name, err)
	}
	return data, nil
}

func (s *Store) WriteBytes(ctx context.Context, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`, s.table), s.name, data)
	if err != nil {
		return fmt.Errorf("%w: write slot '%s': %w", miscutils.ErrStorageUnavailable, s.name, err)
	}
	return nil
}

// Delete removes the row.
func (s *Store) Delete(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, s.table), s.name)
	if err != nil {
		return fmt.Errorf("%w: delete slot '%s': %w", miscutils.ErrStorageUnavailable, s.name, err)
	}
	return nil
}

// Names lists the slots stored in table, sorted.
func Names(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", miscutils.ErrInvalidConfiguration, table)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, table))
	if err != nil {
		return nil, fmt.Errorf("%w: list slots: %w", miscutils.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: list slots: %w", miscutils.ErrStorageUnavailable, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list slots: %w", miscutils.ErrStorageUnavailable, err)
	}
	return names, nil
}
