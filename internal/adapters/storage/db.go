package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *LoggedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS registration (
		id TEXT PRIMARY KEY,
		persons TEXT NOT NULL DEFAULT '[]',
		contact_firstname TEXT NOT NULL,
		contact_lastname TEXT NOT NULL,
		contact_birthdate TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		email TEXT NOT NULL,
		cake_donation TEXT NOT NULL DEFAULT '',
		help_organisation TEXT NOT NULL DEFAULT '',
		confirmed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_registration_email ON registration(email);
	CREATE INDEX IF NOT EXISTS idx_registration_confirmed ON registration(confirmed);
	CREATE INDEX IF NOT EXISTS idx_registration_created_at ON registration(created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
