// Package store persists the synchronized catalog in SQLite.
//
// Writes go through an explicit transaction: Begin, then the replace/insert
// methods on Tx, then Commit or Rollback. Each Tx is bound to the context it
// was started with, so cancelling that context rolls the transaction back.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/logging"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Store owns the database handle. Construct one per process with Open.
type Store struct {
	db   *sql.DB
	path string
	log  zerolog.Logger
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	s := &Store{db: db, path: path, log: logging.Component("store")}
	version, dirty, err := s.Migrate()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug().Str("path", path).Uint("schema_version", version).Bool("dirty", dirty).Msg("database ready")
	return s, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Begin starts a write transaction bound to ctx.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func itemTable(domain catalog.DomainType) (string, error) {
	switch domain {
	case catalog.DomainLive:
		return "live_channels", nil
	case catalog.DomainMovie:
		return "movies", nil
	case catalog.DomainSeries:
		return "series", nil
	}
	return "", fmt.Errorf("store: unknown domain %q", domain)
}
