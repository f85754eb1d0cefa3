package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=dealflow sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate creates the three record families if they are missing.
// Deals are versioned: UNIQUE(deal_uid, version_seq) backs the version chain,
// and the partial index on active versions backs the keyword scan.
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deals (
			id UUID PRIMARY KEY,
			deal_uid UUID NOT NULL,
			keyword TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			volume DECIMAL NOT NULL,
			price DECIMAL NOT NULL,
			amount DECIMAL NOT NULL,
			factor DECIMAL,
			version_seq INTEGER NOT NULL,
			inactive_flag CHAR(1) NOT NULL DEFAULT 'N',
			UNIQUE (deal_uid, version_seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_active_keyword
			ON deals (keyword) WHERE inactive_flag = 'N'`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			deal_uid UUID NOT NULL,
			type TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			volume DECIMAL NOT NULL,
			price DECIMAL NOT NULL,
			amount DECIMAL NOT NULL,
			inactive_flag CHAR(1) NOT NULL DEFAULT 'N'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_active_sells
			ON transactions (deal_uid) WHERE inactive_flag = 'N'`,
		`CREATE TABLE IF NOT EXISTS valuations (
			id UUID PRIMARY KEY,
			deal_uid UUID NOT NULL,
			keyword TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			volume DECIMAL NOT NULL,
			price DECIMAL NOT NULL,
			amount DECIMAL NOT NULL,
			init_volume DECIMAL NOT NULL,
			init_price DECIMAL NOT NULL,
			sold_volume DECIMAL NOT NULL,
			sold_amount DECIMAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_valuations_deal_date
			ON valuations (deal_uid, date DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
