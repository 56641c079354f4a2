package listing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/netsheet-cli/internal/db"
)

const listingsMigration = `
CREATE TABLE IF NOT EXISTS listings (
	address_key        TEXT PRIMARY KEY,
	street_key         TEXT NOT NULL,
	address            TEXT NOT NULL,
	annual_taxes       NUMERIC(12,2),
	commission_percent NUMERIC(8,5),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_street_key ON listings(street_key);
`

var listingColumns = []string{"address_key", "street_key", "address", "annual_taxes", "commission_percent"}

// PostgresSource serves listings from the listings table.
type PostgresSource struct {
	pool db.Pool
}

// NewPostgresSource wraps an open pool.
func NewPostgresSource(pool db.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Migrate creates the listings table.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, listingsMigration)
	return eris.Wrap(err, "listing: migrate")
}

// LookupByAddress matches the normalized address, then the street portion.
func (s *PostgresSource) LookupByAddress(ctx context.Context, address string) (*Record, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return nil, ErrNotFound
	}
	rec, err := s.queryOne(ctx,
		`SELECT address, annual_taxes, commission_percent FROM listings WHERE address_key = $1`, key)
	if !errors.Is(err, ErrNotFound) {
		return rec, err
	}
	street := streetPart(key)
	if street == "" {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx,
		`SELECT address, annual_taxes, commission_percent FROM listings WHERE street_key = $1 ORDER BY address_key LIMIT 1`, street)
}

func (s *PostgresSource) queryOne(ctx context.Context, query, arg string) (*Record, error) {
	var (
		rec        Record
		taxes      decimal.NullDecimal
		commission decimal.NullDecimal
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(&rec.Address, &taxes, &commission)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "listing: query listing")
	}
	if taxes.Valid {
		rec.AnnualTaxes = &taxes.Decimal
	}
	if commission.Valid {
		rec.CommissionPercent = &commission.Decimal
	}
	return &rec, nil
}

// Import upserts records keyed by normalized address and returns the number
// of rows written.
func (s *PostgresSource) Import(ctx context.Context, records []Record) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		key := NormalizeAddress(r.Address)
		if key == "" {
			continue
		}
		rows = append(rows, []any{key, streetPart(key), r.Address, nullable(r.AnnualTaxes), nullable(r.CommissionPercent)})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "listings",
		Columns:      listingColumns,
		ConflictKeys: []string{"address_key"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "listing: import")
	}
	return n, nil
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
