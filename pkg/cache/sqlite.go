package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	captured_at_ms INTEGER NOT NULL,
	ttl_ms INTEGER NOT NULL,
	status INTEGER,
	body BLOB NOT NULL,
	headers TEXT
);
`

// OpenSQLite opens (or creates) the SQLite database file shared by the
// cache store and the usage ledger.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One connection serializes writers; read-increment-write stays atomic.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return db, nil
}

// SQLiteStore is a Store backed by a SQLite table.
type SQLiteStore struct {
	db       *sql.DB
	location string
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewSQLiteStore creates the cache table if needed and returns the store.
func NewSQLiteStore(db *sql.DB, location string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite db is required")
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		return nil, fmt.Errorf("migrate cache table: %w", err)
	}
	return &SQLiteStore{db: db, location: location}, nil
}

// Get retrieves a cache entry by key. Stale entries are returned as well.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Entry, error) {
	var (
		capturedMs int64
		ttlMs      int64
		status     sql.NullInt64
		body       []byte
		headers    sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT captured_at_ms, ttl_ms, status, body, headers FROM cache WHERE key = ?`,
		string(key),
	).Scan(&capturedMs, &ttlMs, &status, &body, &headers)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.misses.Add(1)
			CacheMisses.WithLabelValues("sqlite").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("sqlite", "get").Inc()
		return nil, fmt.Errorf("sqlite get: %w", err)
	}

	entry := &Entry{
		Body:       body,
		StatusCode: int(status.Int64),
		CapturedAt: time.UnixMilli(capturedMs),
		TTL:        time.Duration(ttlMs) * time.Millisecond,
	}
	if headers.Valid && headers.String != "" {
		var h http.Header
		if err := json.Unmarshal([]byte(headers.String), &h); err != nil {
			CacheErrors.WithLabelValues("sqlite", "get").Inc()
			return nil, fmt.Errorf("%w: headers: %v", ErrInvalidEntry, err)
		}
		entry.Headers = h
	}

	s.hits.Add(1)
	CacheHits.WithLabelValues("sqlite", namespace(key)).Inc()
	return entry, nil
}

// Set stores a cache entry, replacing any previous entry for the key.
func (s *SQLiteStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	var status sql.NullInt64
	if entry.StatusCode != 0 {
		status = sql.NullInt64{Int64: int64(entry.StatusCode), Valid: true}
	}

	var headers sql.NullString
	if len(entry.Headers) > 0 {
		data, err := json.Marshal(entry.Headers)
		if err != nil {
			CacheErrors.WithLabelValues("sqlite", "set").Inc()
			return fmt.Errorf("marshal headers: %w", err)
		}
		headers = sql.NullString{String: string(data), Valid: true}
	}

	body := entry.Body
	if body == nil {
		body = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache (key, captured_at_ms, ttl_ms, status, body, headers)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(key), entry.CapturedAt.UnixMilli(), entry.TTL.Milliseconds(), status, body, headers,
	)
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "set").Inc()
		return fmt.Errorf("sqlite set: %w", err)
	}

	CacheWrites.WithLabelValues("sqlite", namespace(key)).Inc()
	return nil
}

// Flush deletes entries whose key starts with prefix (all entries when empty).
func (s *SQLiteStore) Flush(ctx context.Context, prefix string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if prefix == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache`)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM cache WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	}
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "flush").Inc()
		return 0, fmt.Errorf("sqlite flush: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite flush rows: %w", err)
	}
	CacheFlushed.WithLabelValues("sqlite").Add(float64(n))
	return n, nil
}

// Stats returns entry count, capture range and read counters.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var (
		count    int64
		min, max sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), MIN(captured_at_ms), MAX(captured_at_ms) FROM cache`,
	).Scan(&count, &min, &max)
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "stats").Inc()
		return Stats{}, fmt.Errorf("sqlite stats: %w", err)
	}

	stats := Stats{
		Backend:  "sqlite",
		Location: s.location,
		Entries:  count,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
	if min.Valid {
		t := time.UnixMilli(min.Int64)
		stats.OldestCapturedAt = &t
	}
	if max.Valid {
		t := time.UnixMilli(max.Int64)
		stats.NewestCapturedAt = &t
	}
	return stats, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
