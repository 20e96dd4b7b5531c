package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS local_drafts (
	draft_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	stored_at  TEXT NOT NULL
);
`

// opTimeout bounds a single statement so a locked file cannot stall an edit.
const opTimeout = 2 * time.Second

// SQLite persists drafts in a single file on the device.
type SQLite struct {
	db  *sql.DB
	log logger.Logger
}

// OpenSQLite opens (creating if needed) the cache file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// one writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLite{db: db, log: logger.Get().Named("localcache")}, nil
}

// Open returns a SQLite cache at path, or a Noop cache with a warning when
// the file cannot be used.
func Open(path string) Cache {
	c, err := OpenSQLite(path)
	if err != nil {
		metrics.RecordLocalCacheError("open")
		logger.Get().Named("localcache").Warn(context.Background(),
			"local draft cache unavailable, continuing without it",
			logger.String("path", path), logger.Error(err))
		return Noop{}
	}
	return c
}

// Get implements Cache.
func (s *SQLite) Get(key string) (draft.Payload, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM local_drafts WHERE draft_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return draft.Payload{}, false
	}
	if err != nil {
		s.fail(ctx, "get", key, err)
		return draft.Payload{}, false
	}
	p, ok := decodeEntry(s.log, key, raw)
	if !ok {
		s.Remove(key)
	}
	return p, ok
}

// Set implements Cache.
func (s *SQLite) Set(key string, p draft.Payload) {
	raw, err := p.Encode()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `INSERT INTO local_drafts (draft_key, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(draft_key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		key, raw, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.fail(ctx, "set", key, err)
	}
}

// Remove implements Cache.
func (s *SQLite) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_drafts WHERE draft_key = ?`, key); err != nil {
		s.fail(ctx, "remove", key, err)
	}
}

// Close implements Cache.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) fail(ctx context.Context, op, key string, err error) {
	metrics.RecordLocalCacheError(op)
	s.log.Warn(ctx, "local draft cache operation failed",
		logger.String("op", op), logger.String("key", key), logger.Error(err))
}
