// Package store persists committed class digests and metadata records in
// an embedded SQLite database, keyed by content hash.
package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/garland-lang/garland/engine"
)

// Store handles SQLite persistence of digests and metadata wire records.
type Store struct {
	db *sql.DB
}

// Open creates a Store backed by the database at path, creating the schema
// if it doesn't exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS classes (
		hash      TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		namespace TEXT NOT NULL DEFAULT '',
		digest    BLOB NOT NULL,
		saved_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_classes_name ON classes(namespace, name);

	CREATE TABLE IF NOT EXISTS metadata (
		class_hash TEXT NOT NULL,
		side       TEXT NOT NULL CHECK (side IN ('static', 'instance')),
		record     BLOB NOT NULL,
		PRIMARY KEY (class_hash, side),
		FOREIGN KEY (class_hash) REFERENCES classes(hash)
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveClass persists a class digest and both metadata wire records.
// Saving the same content hash again is a no-op for the digest row.
func (s *Store) SaveClass(d *engine.ClassDigest, static, instance *engine.WireMetadata) error {
	digestBytes, err := engine.MarshalClassDigest(d)
	if err != nil {
		return fmt.Errorf("store: encode digest for %s: %w", d.FullName(), err)
	}
	hash := hex.EncodeToString(d.Hash[:])

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO classes (hash, name, namespace, digest) VALUES (?, ?, ?, ?)`,
		hash, d.Name, d.Namespace, digestBytes,
	)
	if err != nil {
		return fmt.Errorf("store: save class %s: %w", d.FullName(), err)
	}

	for side, w := range map[string]*engine.WireMetadata{"static": static, "instance": instance} {
		if w == nil {
			continue
		}
		record, err := engine.MarshalMetadata(w)
		if err != nil {
			return fmt.Errorf("store: encode %s metadata for %s: %w", side, d.FullName(), err)
		}
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO metadata (class_hash, side, record) VALUES (?, ?, ?)`,
			hash, side, record,
		)
		if err != nil {
			return fmt.Errorf("store: save %s metadata for %s: %w", side, d.FullName(), err)
		}
	}

	return tx.Commit()
}

// LoadClass returns the most recently saved digest for a class name
// (optionally namespace-qualified). Returns nil if not found.
func (s *Store) LoadClass(namespace, name string) (*engine.ClassDigest, error) {
	row := s.db.QueryRow(
		`SELECT digest FROM classes WHERE namespace = ? AND name = ? ORDER BY saved_at DESC LIMIT 1`,
		namespace, name,
	)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load class %s: %w", name, err)
	}
	return engine.UnmarshalClassDigest(blob)
}

// LoadMetadata returns one side's metadata wire record for a class hash.
// Returns nil if not found.
func (s *Store) LoadMetadata(hash [32]byte, side string) (*engine.WireMetadata, error) {
	row := s.db.QueryRow(
		`SELECT record FROM metadata WHERE class_hash = ? AND side = ?`,
		hex.EncodeToString(hash[:]), side,
	)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load %s metadata: %w", side, err)
	}
	return engine.UnmarshalMetadata(blob)
}

// ListClasses returns the fully qualified names of all saved classes,
// sorted by namespace then name.
func (s *Store) ListClasses() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT namespace, name FROM classes ORDER BY namespace, name`)
	if err != nil {
		return nil, fmt.Errorf("store: list classes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var namespace, name string
		if err := rows.Scan(&namespace, &name); err != nil {
			return nil, fmt.Errorf("store: scan class row: %w", err)
		}
		if namespace != "" {
			name = namespace + "::" + name
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
