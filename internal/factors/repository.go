package factors

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository stores factor return series and computed exposures
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new factors repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFactorReturns retrieves a factor series within a range, oldest first
func (r *Repository) GetFactorReturns(ctx context.Context, factorCode string, rng contracts.DateRange) ([]contracts.BenchmarkReturn, error) {
	query := `
		SELECT factor_code, return_date, daily_return, index_level
		FROM analytics.factor_returns
		WHERE factor_code = $1 AND return_date BETWEEN $2 AND $3
		ORDER BY return_date ASC
	`

	rows, err := r.pool.Query(ctx, query, factorCode, rng.From, rng.To)
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

// ListFactorCodes returns every factor code with stored data
func (r *Repository) ListFactorCodes(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT factor_code
		FROM analytics.factor_returns
		ORDER BY factor_code ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// UpsertExposure saves one factor exposure result
func (r *Repository) UpsertExposure(ctx context.Context, e *contracts.FactorExposure) error {
	query := `
		INSERT INTO analytics.factor_exposures
			(view_type, view_id, factor_code, as_of_date, exposure, correlation, observations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (view_type, view_id, factor_code, as_of_date) DO UPDATE SET
			exposure = EXCLUDED.exposure,
			correlation = EXCLUDED.correlation,
			observations = EXCLUDED.observations
	`

	_, err := r.pool.Exec(ctx, query,
		e.ViewType, e.ViewID, e.FactorCode, e.AsOfDate,
		e.Exposure, e.Correlation, e.Observations,
	)
	return err
}

// GetExposures retrieves all factor exposures for a view on a date
func (r *Repository) GetExposures(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) ([]contracts.FactorExposure, error) {
	query := `
		SELECT view_type, view_id, factor_code, as_of_date, exposure, correlation, observations
		FROM analytics.factor_exposures
		WHERE view_type = $1 AND view_id = $2 AND as_of_date = $3
		ORDER BY factor_code ASC
	`

	rows, err := r.pool.Query(ctx, query, vt, viewID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exposures []contracts.FactorExposure
	for rows.Next() {
		var e contracts.FactorExposure
		if err := rows.Scan(
			&e.ViewType, &e.ViewID, &e.FactorCode, &e.AsOfDate,
			&e.Exposure, &e.Correlation, &e.Observations,
		); err != nil {
			return nil, err
		}
		exposures = append(exposures, e)
	}
	return exposures, rows.Err()
}
