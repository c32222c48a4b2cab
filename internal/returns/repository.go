package returns

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository is the sole writer of analytics.daily_returns
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new returns repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSeries upserts a batch of return observations
func (r *Repository) SaveSeries(ctx context.Context, obs []contracts.ReturnObservation) error {
	if len(obs) == 0 {
		return nil
	}

	query := `
		INSERT INTO analytics.daily_returns (view_type, view_id, return_date, twr_return, twr_index)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (view_type, view_id, return_date) DO UPDATE SET
			twr_return = EXCLUDED.twr_return,
			twr_index = EXCLUDED.twr_index
	`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query, o.ViewType, o.ViewID, o.Date, o.TWRReturn, o.TWRIndex)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range obs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetSeries retrieves return observations for a view, oldest first
func (r *Repository) GetSeries(ctx context.Context, vt contracts.ViewType, viewID string, rng contracts.DateRange) ([]contracts.ReturnObservation, error) {
	query := `
		SELECT view_type, view_id, return_date, twr_return, twr_index
		FROM analytics.daily_returns
		WHERE view_type = $1 AND view_id = $2 AND return_date BETWEEN $3 AND $4
		ORDER BY return_date ASC
	`

	rows, err := r.pool.Query(ctx, query, vt, viewID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetTrailing retrieves the newest n observations, returned oldest first
func (r *Repository) GetTrailing(ctx context.Context, vt contracts.ViewType, viewID string, n int) ([]contracts.ReturnObservation, error) {
	query := `
		SELECT view_type, view_id, return_date, twr_return, twr_index
		FROM (
			SELECT view_type, view_id, return_date, twr_return, twr_index
			FROM analytics.daily_returns
			WHERE view_type = $1 AND view_id = $2
			ORDER BY return_date DESC
			LIMIT $3
		) recent
		ORDER BY return_date ASC
	`

	rows, err := r.pool.Query(ctx, query, vt, viewID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows pgx.Rows) ([]contracts.ReturnObservation, error) {
	var obs []contracts.ReturnObservation
	for rows.Next() {
		var o contracts.ReturnObservation
		if err := rows.Scan(&o.ViewType, &o.ViewID, &o.Date, &o.TWRReturn, &o.TWRIndex); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}
