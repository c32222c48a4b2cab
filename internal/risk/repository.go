package risk

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository is the sole writer of analytics.daily_risk
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new risk repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert saves one risk observation
func (r *Repository) Upsert(ctx context.Context, obs *contracts.RiskObservation) error {
	query := `
		INSERT INTO analytics.daily_risk
			(view_type, view_id, risk_date, vol_21d, vol_63d, max_drawdown_1y, var_95_1d_hist, cvar_95_1d_hist)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (view_type, view_id, risk_date) DO UPDATE SET
			vol_21d = EXCLUDED.vol_21d,
			vol_63d = EXCLUDED.vol_63d,
			max_drawdown_1y = EXCLUDED.max_drawdown_1y,
			var_95_1d_hist = EXCLUDED.var_95_1d_hist,
			cvar_95_1d_hist = EXCLUDED.cvar_95_1d_hist
	`

	_, err := r.pool.Exec(ctx, query,
		obs.ViewType, obs.ViewID, obs.Date,
		obs.Vol21D, obs.Vol63D, obs.MaxDrawdown1Y, obs.VaR951DHist, obs.CVaR951DHist,
	)
	return err
}

// Get retrieves the risk observation for a view on one date
func (r *Repository) Get(ctx context.Context, vt contracts.ViewType, viewID string, date time.Time) (*contracts.RiskObservation, error) {
	query := `
		SELECT view_type, view_id, risk_date, vol_21d, vol_63d, max_drawdown_1y, var_95_1d_hist, cvar_95_1d_hist
		FROM analytics.daily_risk
		WHERE view_type = $1 AND view_id = $2 AND risk_date = $3
	`

	var obs contracts.RiskObservation
	err := r.pool.QueryRow(ctx, query, vt, viewID, date).Scan(
		&obs.ViewType, &obs.ViewID, &obs.Date,
		&obs.Vol21D, &obs.Vol63D, &obs.MaxDrawdown1Y, &obs.VaR951DHist, &obs.CVaR951DHist,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// GetSeries retrieves risk observations for a view, oldest first
func (r *Repository) GetSeries(ctx context.Context, vt contracts.ViewType, viewID string, rng contracts.DateRange) ([]contracts.RiskObservation, error) {
	query := `
		SELECT view_type, view_id, risk_date, vol_21d, vol_63d, max_drawdown_1y, var_95_1d_hist, cvar_95_1d_hist
		FROM analytics.daily_risk
		WHERE view_type = $1 AND view_id = $2 AND risk_date BETWEEN $3 AND $4
		ORDER BY risk_date ASC
	`

	rows, err := r.pool.Query(ctx, query, vt, viewID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []contracts.RiskObservation
	for rows.Next() {
		var obs contracts.RiskObservation
		if err := rows.Scan(
			&obs.ViewType, &obs.ViewID, &obs.Date,
			&obs.Vol21D, &obs.Vol63D, &obs.MaxDrawdown1Y, &obs.VaR951DHist, &obs.CVaR951DHist,
		); err != nil {
			return nil, err
		}
		series = append(series, obs)
	}
	return series, rows.Err()
}
