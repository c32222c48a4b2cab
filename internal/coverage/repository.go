package coverage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository implements contracts.CoverageRepository on PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new coverage repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves the coverage record for a (ticker, provider) pair.
// Returns (nil, nil) when no record exists yet.
func (r *Repository) Get(ctx context.Context, ticker, provider string) (*contracts.ProviderCoverageRecord, error) {
	query := `
		SELECT ticker, provider, status, last_success, last_failure,
		       failure_streak, total_failures, last_error, records_fetched, updated_at
		FROM marketdata.provider_coverage
		WHERE ticker = $1 AND provider = $2
	`

	var rec contracts.ProviderCoverageRecord
	err := r.pool.QueryRow(ctx, query, ticker, provider).Scan(
		&rec.Ticker, &rec.Provider, &rec.Status, &rec.LastSuccess, &rec.LastFailure,
		&rec.FailureStreak, &rec.TotalFailures, &rec.LastError, &rec.RecordsFetched, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByTicker retrieves all coverage records for a ticker
func (r *Repository) GetByTicker(ctx context.Context, ticker string) ([]*contracts.ProviderCoverageRecord, error) {
	query := `
		SELECT ticker, provider, status, last_success, last_failure,
		       failure_streak, total_failures, last_error, records_fetched, updated_at
		FROM marketdata.provider_coverage
		WHERE ticker = $1
	`

	rows, err := r.pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*contracts.ProviderCoverageRecord
	for rows.Next() {
		var rec contracts.ProviderCoverageRecord
		if err := rows.Scan(
			&rec.Ticker, &rec.Provider, &rec.Status, &rec.LastSuccess, &rec.LastFailure,
			&rec.FailureStreak, &rec.TotalFailures, &rec.LastError, &rec.RecordsFetched, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Upsert saves a coverage record atomically on its natural key
func (r *Repository) Upsert(ctx context.Context, rec *contracts.ProviderCoverageRecord) error {
	query := `
		INSERT INTO marketdata.provider_coverage
			(ticker, provider, status, last_success, last_failure,
			 failure_streak, total_failures, last_error, records_fetched, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ticker, provider) DO UPDATE SET
			status = EXCLUDED.status,
			last_success = EXCLUDED.last_success,
			last_failure = EXCLUDED.last_failure,
			failure_streak = EXCLUDED.failure_streak,
			total_failures = EXCLUDED.total_failures,
			last_error = EXCLUDED.last_error,
			records_fetched = EXCLUDED.records_fetched,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Ticker, rec.Provider, rec.Status, rec.LastSuccess, rec.LastFailure,
		rec.FailureStreak, rec.TotalFailures, rec.LastError, rec.RecordsFetched, rec.UpdatedAt,
	)
	return err
}
