package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a durable key/value store for cache entries.
//
// Set overwrites unconditionally. Entries are retained until flushed or
// superseded; a stale entry is still returned by Get.
type Store interface {
	// Get returns the entry for key or ErrCacheMiss.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores entry under key, replacing any previous entry.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Flush deletes every entry whose key starts with prefix.
	// An empty prefix deletes everything. Returns the number of entries removed.
	Flush(ctx context.Context, prefix string) (int64, error)

	// Stats reports entry counts and read counters.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// Stats describes the store contents.
type Stats struct {
	Backend          string     `json:"kind"`
	Location         string     `json:"location,omitempty"`
	Entries          int64      `json:"count"`
	OldestCapturedAt *time.Time `json:"minFetchedAt"`
	NewestCapturedAt *time.Time `json:"maxFetchedAt"`
	Hits             int64      `json:"hits"`
	Misses           int64      `json:"misses"`
}
