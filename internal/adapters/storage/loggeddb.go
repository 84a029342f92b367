package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// DefaultSlowQueryMs is the default threshold for slow query warnings.
const DefaultSlowQueryMs = 50

// LoggedDB wraps a *sql.DB to log slow queries.
// Satisfies the SQLDB interface so it can be passed to any store constructor.
type LoggedDB struct {
	db        *sql.DB
	threshold float64 // milliseconds
}

// Compile-time check that *LoggedDB satisfies SQLDB.
var _ SQLDB = (*LoggedDB)(nil)

// NewLoggedDB wraps a *sql.DB with slow-query logging. The threshold is
// taken from ZELTLAGER_SLOW_QUERY_MS when set.
// PRE: db is a valid database connection
// POST: Returns a LoggedDB that warns about queries above the threshold
func NewLoggedDB(db *sql.DB) *LoggedDB {
	ms := DefaultSlowQueryMs
	if v := os.Getenv("ZELTLAGER_SLOW_QUERY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ms = n
		}
	}
	return &LoggedDB{db: db, threshold: float64(ms)}
}

// RawDB returns the underlying *sql.DB (needed for schema init and pool config).
func (l *LoggedDB) RawDB() *sql.DB {
	return l.db
}

// logQuery logs a query that exceeded the slow threshold.
func (l *LoggedDB) logQuery(op, query string, start time.Time) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	if durationMs >= l.threshold {
		slog.Warn("slow_query", "op", op, "query", query, "duration_ms", durationMs)
	}
}

func (l *LoggedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	defer l.logQuery("exec", query, start)
	return l.db.ExecContext(ctx, query, args...)
}

func (l *LoggedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	defer l.logQuery("query", query, start)
	return l.db.QueryContext(ctx, query, args...)
}

func (l *LoggedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	defer l.logQuery("query_row", query, start)
	return l.db.QueryRowContext(ctx, query, args...)
}

func (l *LoggedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return l.db.BeginTx(ctx, opts)
}
