package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository implements contracts.LedgerRepository on PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ledger repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves the computation record for a unit key.
// Returns (nil, nil) when the unit has never run.
func (r *Repository) Get(ctx context.Context, ct contracts.ComputationType, vt contracts.ViewType, viewID string) (*contracts.ComputationRecord, error) {
	query := `
		SELECT computation_type, view_type, view_id, input_hash, output_hash,
		       status, last_computed, duration_ms, error_message
		FROM analytics.computation_ledger
		WHERE computation_type = $1 AND view_type = $2 AND view_id = $3
	`

	var rec contracts.ComputationRecord
	err := r.pool.QueryRow(ctx, query, ct, vt, viewID).Scan(
		&rec.ComputationType, &rec.ViewType, &rec.ViewID, &rec.InputHash, &rec.OutputHash,
		&rec.Status, &rec.LastComputed, &rec.DurationMs, &rec.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert saves a computation record atomically on the unique
// (computation_type, view_type, view_id) key. last_computed only moves
// forward when the new record carries a value; skip transitions keep the
// stored timestamp.
func (r *Repository) Upsert(ctx context.Context, rec *contracts.ComputationRecord) error {
	query := `
		INSERT INTO analytics.computation_ledger
			(computation_type, view_type, view_id, input_hash, output_hash,
			 status, last_computed, duration_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '0001-01-01'::timestamptz), $8, $9)
		ON CONFLICT (computation_type, view_type, view_id) DO UPDATE SET
			input_hash = EXCLUDED.input_hash,
			output_hash = EXCLUDED.output_hash,
			status = EXCLUDED.status,
			last_computed = COALESCE(EXCLUDED.last_computed, analytics.computation_ledger.last_computed),
			duration_ms = EXCLUDED.duration_ms,
			error_message = EXCLUDED.error_message
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ComputationType, rec.ViewType, rec.ViewID, rec.InputHash, rec.OutputHash,
		rec.Status, rec.LastComputed, rec.DurationMs, rec.ErrorMessage,
	)
	return err
}

// ListByView retrieves all computation records for one view
func (r *Repository) ListByView(ctx context.Context, vt contracts.ViewType, viewID string) ([]*contracts.ComputationRecord, error) {
	query := `
		SELECT computation_type, view_type, view_id, input_hash, output_hash,
		       status, last_computed, duration_ms, error_message
		FROM analytics.computation_ledger
		WHERE view_type = $1 AND view_id = $2
		ORDER BY computation_type
	`

	rows, err := r.pool.Query(ctx, query, vt, viewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*contracts.ComputationRecord
	for rows.Next() {
		var rec contracts.ComputationRecord
		if err := rows.Scan(
			&rec.ComputationType, &rec.ViewType, &rec.ViewID, &rec.InputHash, &rec.OutputHash,
			&rec.Status, &rec.LastComputed, &rec.DurationMs, &rec.ErrorMessage,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
