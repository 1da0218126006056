// Package probecache persists probed media durations in SQLite so repeated
// runs over the same working directory skip redundant ffprobe invocations.
// Entries are keyed by path plus file size and modification time; a touched
// file misses the cache and is probed again.
package probecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tracksplit/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS probes (
    path TEXT NOT NULL,
    size INTEGER NOT NULL,
    mtime_unix_nano INTEGER NOT NULL,
    duration_seconds REAL NOT NULL,
    PRIMARY KEY (path, size, mtime_unix_nano)
);
`

// Store is a SQLite-backed duration cache.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database at path, creating
// parent directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get looks up a cached duration for the file identified by path, size, and
// modification time. The second return reports whether a row was found.
func (s *Store) Get(ctx context.Context, path string, size int64, mtimeUnixNano int64) (float64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT duration_seconds FROM probes WHERE path = ? AND size = ? AND mtime_unix_nano = ?",
		path, size, mtimeUnixNano)
	var duration float64
	if err := row.Scan(&duration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query probe cache: %w", err)
	}
	return duration, true, nil
}

// Put stores a probed duration, replacing any stale rows for the same path.
func (s *Store) Put(ctx context.Context, path string, size int64, mtimeUnixNano int64, duration float64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM probes WHERE path = ?", path); err != nil {
		return fmt.Errorf("evict stale probe rows: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO probes (path, size, mtime_unix_nano, duration_seconds) VALUES (?, ?, ?, ?)",
		path, size, mtimeUnixNano, duration); err != nil {
		return fmt.Errorf("insert probe row: %w", err)
	}
	return nil
}

// Prober mirrors the duration probe surface of the ffprobe client.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// CachingProber wraps a Prober with the store. Cache failures are logged and
// degrade to a direct probe; they never fail the lookup.
type CachingProber struct {
	store  *Store
	prober Prober
	logger *slog.Logger
}

// NewCachingProber builds a caching wrapper around prober.
func NewCachingProber(store *Store, prober Prober, logger *slog.Logger) *CachingProber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachingProber{store: store, prober: prober, logger: logger}
}

// Duration returns the media duration for path, consulting the cache first.
func (p *CachingProber) Duration(ctx context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Let the underlying prober produce the canonical error.
		return p.prober.Duration(ctx, path)
	}

	size := info.Size()
	mtime := info.ModTime().UnixNano()

	if duration, ok, err := p.store.Get(ctx, path, size, mtime); err != nil {
		p.logger.Warn("probe cache read failed", logging.Error(err), logging.String("path", path))
	} else if ok {
		p.logger.Debug("probe cache hit", logging.String("path", path), logging.Float64("seconds", duration))
		return duration, nil
	}

	duration, err := p.prober.Duration(ctx, path)
	if err != nil {
		return 0, err
	}
	if err := p.store.Put(ctx, path, size, mtime, duration); err != nil {
		p.logger.Warn("probe cache write failed", logging.Error(err), logging.String("path", path))
	}
	return duration, nil
}
