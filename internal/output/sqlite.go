// internal/output/sqlite.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/realyield/auctionwatch/pkg/types"
)

// SQLiteWriter appends records to a local archive database. Unlike the
// Postgres sink it keeps every run's rows, so bid history over time stays
// queryable.
type SQLiteWriter struct {
	db   *sql.DB
	path string
}

// NewSQLiteWriter opens or creates the archive database.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	stmt := `CREATE TABLE IF NOT EXISTS auction_archive (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		property_url   TEXT NOT NULL,
		property_name  TEXT NOT NULL,
		address        TEXT NOT NULL,
		bidding_starts TEXT,
		bidding_ends   TEXT,
		starting_bid   REAL,
		property_type  TEXT NOT NULL,
		year_built     INTEGER,
		broker1        TEXT NOT NULL,
		broker2        TEXT NOT NULL,
		broker3        TEXT NOT NULL,
		building_size  TEXT NOT NULL,
		source         TEXT NOT NULL,
		scraped_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auction_archive_url ON auction_archive (property_url)`
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive table: %w", err)
	}

	return &SQLiteWriter{db: db, path: path}, nil
}

// Write appends all records in one transaction.
func (w *SQLiteWriter) Write(records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO auction_archive (
		property_url, property_name, address, bidding_starts, bidding_ends,
		starting_bid, property_type, year_built, broker1, broker2, broker3,
		building_size, source, scraped_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	scrapedAt := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if _, err := stmt.Exec(
			rec.PropertyURL, rec.PropertyName, rec.Address,
			sqliteTime(rec.BiddingStarts), sqliteTime(rec.BiddingEnds),
			rec.StartingBid, rec.PropertyType, rec.YearBuilt,
			rec.Broker1, rec.Broker2, rec.Broker3,
			rec.BuildingSize, rec.Source.String(), scrapedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert %s: %w", rec.PropertyURL, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func sqliteTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
