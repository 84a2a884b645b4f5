// Package stablestore keeps versioned upgrade blobs on disk. It plays the
// part of the host's stable memory: the claim engine hands its state over
// as an opaque blob before an upgrade and gets it back afterwards.
package stablestore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrChecksumMismatch = errors.New("stored blob checksum mismatch")
)

// Snapshot is one saved version of a named blob.
type Snapshot struct {
	Name     string
	Version  uint64
	Blob     []byte
	Checksum hash.Hash
	SavedAt  time.Time
}

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			body BLOB NOT NULL,
			saved_at INTEGER NOT NULL,
			PRIMARY KEY (name, version)
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Save stores blob as the next version of name and returns that version.
// Versions start at 1.
func (s *Store) Save(ctx context.Context, name string, blob []byte, at time.Time) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT MAX(version) FROM blobs WHERE name = ?`, name).Scan(&last)
	if err != nil {
		return 0, err
	}
	version := uint64(last.Int64) + 1

	sum := hash.Of(blob)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO blobs (name, version, checksum, body, saved_at) VALUES (?, ?, ?, ?, ?)`,
		name, version, hex.EncodeToString(sum.Bytes()), blob, at.Unix(),
	)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// Latest returns the newest version of name.
func (s *Store) Latest(ctx context.Context, name string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, version, checksum, body, saved_at FROM blobs
		 WHERE name = ? ORDER BY version DESC LIMIT 1`,
		name,
	)
	snap, err := scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// History returns up to limit versions of name, newest first. A limit of
// zero returns every version.
func (s *Store) History(ctx context.Context, name string, limit int) ([]*Snapshot, error) {
	q := `SELECT name, version, checksum, body, saved_at FROM blobs WHERE name = ? ORDER BY version DESC`
	args := []interface{}{name}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*Snapshot, error) {
	var (
		snap    Snapshot
		sumHex  string
		savedAt int64
	)
	if err := row.Scan(&snap.Name, &snap.Version, &sumHex, &snap.Blob, &savedAt); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(sumHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s v%d", ErrChecksumMismatch, snap.Name, snap.Version)
	}
	snap.Checksum = hash.BytesToHash(raw)
	if hash.Of(snap.Blob) != snap.Checksum {
		return nil, fmt.Errorf("%w: %s v%d", ErrChecksumMismatch, snap.Name, snap.Version)
	}
	snap.SavedAt = time.Unix(savedAt, 0).UTC()
	return &snap, nil
}
