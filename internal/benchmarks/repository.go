package benchmarks

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository stores benchmark return series (native and synthetic) and
// the regression metrics computed against them
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new benchmarks repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveReturns upserts a batch of benchmark return observations
func (r *Repository) SaveReturns(ctx context.Context, returns []contracts.BenchmarkReturn) error {
	if len(returns) == 0 {
		return nil
	}

	query := `
		INSERT INTO analytics.benchmark_returns (benchmark_code, return_date, daily_return, index_level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (benchmark_code, return_date) DO UPDATE SET
			daily_return = EXCLUDED.daily_return,
			index_level = EXCLUDED.index_level
	`

	batch := &pgx.Batch{}
	for _, ret := range returns {
		batch.Queue(query, ret.Code, ret.Date, ret.Return, ret.Level)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range returns {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetReturns retrieves a benchmark series within a range, oldest first
func (r *Repository) GetReturns(ctx context.Context, code string, rng contracts.DateRange) ([]contracts.BenchmarkReturn, error) {
	query := `
		SELECT benchmark_code, return_date, daily_return, index_level
		FROM analytics.benchmark_returns
		WHERE benchmark_code = $1 AND return_date BETWEEN $2 AND $3
		ORDER BY return_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []contracts.BenchmarkReturn
	for rows.Next() {
		var ret contracts.BenchmarkReturn
		if err := rows.Scan(&ret.Code, &ret.Date, &ret.Return, &ret.Level); err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

// LastReturnDate returns the newest stored date for a benchmark code.
// Zero time when the series is empty.
func (r *Repository) LastReturnDate(ctx context.Context, code string) (time.Time, error) {
	query := `
		SELECT return_date
		FROM analytics.benchmark_returns
		WHERE benchmark_code = $1
		ORDER BY return_date DESC
		LIMIT 1
	`

	var date time.Time
	err := r.pool.QueryRow(ctx, query, code).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return date, nil
}

// UpsertMetric saves one regression result
func (r *Repository) UpsertMetric(ctx context.Context, m *contracts.BenchmarkMetric) error {
	query := `
		INSERT INTO analytics.benchmark_metrics
			(view_type, view_id, benchmark_code, as_of_date, beta, alpha, tracking_error, correlation, observations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (view_type, view_id, benchmark_code, as_of_date) DO UPDATE SET
			beta = EXCLUDED.beta,
			alpha = EXCLUDED.alpha,
			tracking_error = EXCLUDED.tracking_error,
			correlation = EXCLUDED.correlation,
			observations = EXCLUDED.observations
	`

	_, err := r.pool.Exec(ctx, query,
		m.ViewType, m.ViewID, m.BenchmarkCode, m.AsOfDate,
		m.Beta, m.Alpha, m.TrackingError, m.Correlation, m.Observations,
	)
	return err
}

// GetMetrics retrieves all benchmark metrics for a view on a date
func (r *Repository) GetMetrics(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) ([]contracts.BenchmarkMetric, error) {
	query := `
		SELECT view_type, view_id, benchmark_code, as_of_date, beta, alpha, tracking_error, correlation, observations
		FROM analytics.benchmark_metrics
		WHERE view_type = $1 AND view_id = $2 AND as_of_date = $3
		ORDER BY benchmark_code ASC
	`

	rows, err := r.pool.Query(ctx, query, vt, viewID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []contracts.BenchmarkMetric
	for rows.Next() {
		var m contracts.BenchmarkMetric
		if err := rows.Scan(
			&m.ViewType, &m.ViewID, &m.BenchmarkCode, &m.AsOfDate,
			&m.Beta, &m.Alpha, &m.TrackingError, &m.Correlation, &m.Observations,
		); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
