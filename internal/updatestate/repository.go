package updatestate

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository implements contracts.UpdateStateRepository on PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new update-state repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves the update state for an entity. Returns (nil, nil) when
// the entity has never been updated.
func (r *Repository) Get(ctx context.Context, entityType contracts.EntityType, entityID string) (*contracts.UpdateState, error) {
	query := `
		SELECT entity_type, entity_id, last_update_date, last_update_time,
		       preferred_provider, update_frequency, needs_backfill, backfill_start
		FROM marketdata.update_state
		WHERE entity_type = $1 AND entity_id = $2
	`

	var state contracts.UpdateState
	err := r.pool.QueryRow(ctx, query, entityType, entityID).Scan(
		&state.EntityType, &state.EntityID, &state.LastUpdateDate, &state.LastUpdateTime,
		&state.PreferredProvider, &state.UpdateFrequency, &state.NeedsBackfill, &state.BackfillStart,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Upsert saves update state atomically on its natural key
func (r *Repository) Upsert(ctx context.Context, state *contracts.UpdateState) error {
	query := `
		INSERT INTO marketdata.update_state
			(entity_type, entity_id, last_update_date, last_update_time,
			 preferred_provider, update_frequency, needs_backfill, backfill_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			last_update_date = EXCLUDED.last_update_date,
			last_update_time = EXCLUDED.last_update_time,
			preferred_provider = EXCLUDED.preferred_provider,
			update_frequency = EXCLUDED.update_frequency,
			needs_backfill = EXCLUDED.needs_backfill,
			backfill_start = EXCLUDED.backfill_start
	`

	_, err := r.pool.Exec(ctx, query,
		state.EntityType, state.EntityID, state.LastUpdateDate, state.LastUpdateTime,
		state.PreferredProvider, state.UpdateFrequency, state.NeedsBackfill, state.BackfillStart,
	)
	return err
}
