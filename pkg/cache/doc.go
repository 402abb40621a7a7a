// Package cache provides the persistent response cache used by the gateway.
//
// Two kinds of entries share one store:
//
//   - raw upstream responses, keyed "GET <canonical URL>"
//   - derived views computed from cached data, keyed "DERIVED <name>"
//
// Every entry carries its capture time and TTL. Backends never expire or
// evict entries: a stale entry stays readable so the gateway can degrade to
// "serve whatever we have" when the upstream is unavailable or the daily
// budget is spent. Entries are only replaced by a newer write or removed by
// an explicit Flush.
//
// # Backends
//
//	db, err := cache.OpenSQLite(".cache/cache.sqlite")
//	store, err := cache.NewSQLiteStore(db, ".cache/cache.sqlite")
//
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
// # Freshness
//
//	entry, err := store.Get(ctx, cache.RawKey(url))
//	if err == cache.ErrCacheMiss {
//		// nothing cached
//	}
//	if entry.IsFresh(time.Now()) {
//		// serve without spending budget
//	}
//
// # Metrics
//
//   - footy_cache_hits_total{backend, namespace}
//   - footy_cache_misses_total{backend}
//   - footy_cache_writes_total{backend, namespace}
//   - footy_cache_flushed_total{backend}
//   - footy_cache_errors_total{backend, operation}
package cache
