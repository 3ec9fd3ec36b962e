// internal/output/postgres.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/realyield/auctionwatch/pkg/types"
)

// PostgresOptions configures the Postgres sink.
type PostgresOptions struct {
	ConnectionString string
	Table            string
}

// PostgresWriter upserts records into a Postgres table keyed by
// property_url, so repeated runs keep one current row per listing.
type PostgresWriter struct {
	db    *sql.DB
	table string
}

// NewPostgresWriter connects and ensures the target table exists.
func NewPostgresWriter(options PostgresOptions) (*PostgresWriter, error) {
	if options.ConnectionString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}
	if options.Table == "" {
		options.Table = "auction_listings"
	}

	db, err := sql.Open("postgres", options.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	w := &PostgresWriter{db: db, table: options.Table}
	if err := w.ensureTable(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *PostgresWriter) ensureTable() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		property_url   TEXT PRIMARY KEY,
		property_name  TEXT NOT NULL,
		address        TEXT NOT NULL,
		bidding_starts TIMESTAMPTZ,
		bidding_ends   TIMESTAMPTZ,
		starting_bid   NUMERIC,
		property_type  TEXT NOT NULL,
		year_built     INTEGER,
		broker1        TEXT NOT NULL,
		broker2        TEXT NOT NULL,
		broker3        TEXT NOT NULL,
		building_size  TEXT NOT NULL,
		source         TEXT NOT NULL,
		scraped_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pq.QuoteIdentifier(w.table))
	if _, err := w.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.table, err)
	}
	return nil
}

// Write upserts all records in one transaction.
func (w *PostgresWriter) Write(records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s (
		property_url, property_name, address, bidding_starts, bidding_ends,
		starting_bid, property_type, year_built, broker1, broker2, broker3,
		building_size, source, scraped_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
	ON CONFLICT (property_url) DO UPDATE SET
		property_name  = EXCLUDED.property_name,
		address        = EXCLUDED.address,
		bidding_starts = EXCLUDED.bidding_starts,
		bidding_ends   = EXCLUDED.bidding_ends,
		starting_bid   = EXCLUDED.starting_bid,
		property_type  = EXCLUDED.property_type,
		year_built     = EXCLUDED.year_built,
		broker1        = EXCLUDED.broker1,
		broker2        = EXCLUDED.broker2,
		broker3        = EXCLUDED.broker3,
		building_size  = EXCLUDED.building_size,
		source         = EXCLUDED.source,
		scraped_at     = now()`, pq.QuoteIdentifier(w.table)))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(
			rec.PropertyURL, rec.PropertyName, rec.Address,
			rec.BiddingStarts, rec.BiddingEnds, rec.StartingBid,
			rec.PropertyType, rec.YearBuilt,
			rec.Broker1, rec.Broker2, rec.Broker3,
			rec.BuildingSize, rec.Source.String(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert %s: %w", rec.PropertyURL, err)
		}
	}
	return tx.Commit()
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}
