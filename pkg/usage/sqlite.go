package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const createUsageTable = `
CREATE TABLE IF NOT EXISTS usage_daily (
	date TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteLedger stores one row per day in SQLite.
type SQLiteLedger struct {
	db    *sql.DB
	limit int64
	clock Clock
}

// NewSQLiteLedger creates the usage table if needed.
func NewSQLiteLedger(db *sql.DB, limit int64, clock Clock) (*SQLiteLedger, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite db is required")
	}
	if limit < 0 {
		return nil, fmt.Errorf("daily limit must be >= 0 (got %d)", limit)
	}
	if _, err := db.Exec(createUsageTable); err != nil {
		return nil, fmt.Errorf("migrate usage table: %w", err)
	}
	return &SQLiteLedger{db: db, limit: limit, clock: clockOrNow(clock)}, nil
}

// Get returns today's usage; a missing row counts as zero.
func (l *SQLiteLedger) Get(ctx context.Context) (Usage, error) {
	u := Usage{Date: Day(l.clock()), Limit: l.limit}

	err := l.db.QueryRowContext(ctx, `SELECT count FROM usage_daily WHERE date = ?`, u.Date).Scan(&u.Count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Usage{}, fmt.Errorf("get usage: %w", err)
	}

	observe(u)
	return u, nil
}

// Increment adds n to today's row in a single statement.
func (l *SQLiteLedger) Increment(ctx context.Context, n int64) (Usage, error) {
	if n < 0 {
		return Usage{}, fmt.Errorf("increment must be >= 0 (got %d)", n)
	}
	u := Usage{Date: Day(l.clock()), Limit: l.limit}

	err := l.db.QueryRowContext(ctx,
		`INSERT INTO usage_daily (date, count) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET count = count + excluded.count
		 RETURNING count`,
		u.Date, n,
	).Scan(&u.Count)
	if err != nil {
		return Usage{}, fmt.Errorf("increment usage: %w", err)
	}

	observe(u)
	return u, nil
}

// TryIncrement spends n only when the row stays within the limit. The
// conditional upsert returns no row when the update is refused.
func (l *SQLiteLedger) TryIncrement(ctx context.Context, n int64) (Usage, bool, error) {
	if n < 0 {
		return Usage{}, false, fmt.Errorf("increment must be >= 0 (got %d)", n)
	}
	if n > l.limit {
		u, err := l.Get(ctx)
		return u, false, err
	}
	u := Usage{Date: Day(l.clock()), Limit: l.limit}

	err := l.db.QueryRowContext(ctx,
		`INSERT INTO usage_daily (date, count) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET count = count + excluded.count
		 WHERE count + excluded.count <= ?
		 RETURNING count`,
		u.Date, n, l.limit,
	).Scan(&u.Count)
	if errors.Is(err, sql.ErrNoRows) {
		u, err := l.Get(ctx)
		return u, false, err
	}
	if err != nil {
		return Usage{}, false, fmt.Errorf("increment usage: %w", err)
	}

	observe(u)
	return u, true, nil
}

// CanSpend reports whether n more calls fit into today's limit.
func (l *SQLiteLedger) CanSpend(ctx context.Context, n int64) (bool, error) {
	u, err := l.Get(ctx)
	if err != nil {
		return false, err
	}
	return u.Allows(n), nil
}
