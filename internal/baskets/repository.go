package baskets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository persists basket definitions. The definition and its
// constituents are written in one transaction; a basket is never stored
// half-updated.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new baskets repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts a basket and replaces its constituent set
func (r *Repository) Save(ctx context.Context, b *contracts.Basket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO analytics.baskets (code, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at
	`, b.Code, b.Name, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM analytics.basket_constituents WHERE basket_code = $1`, b.Code); err != nil {
		return err
	}

	for _, c := range b.Constituents {
		_, err := tx.Exec(ctx, `
			INSERT INTO analytics.basket_constituents (basket_code, symbol, weight)
			VALUES ($1, $2, $3)
		`, b.Code, c.Symbol, c.Weight)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Get retrieves a basket with its constituents. Nil when not found.
func (r *Repository) Get(ctx context.Context, code string) (*contracts.Basket, error) {
	var b contracts.Basket
	err := r.pool.QueryRow(ctx, `
		SELECT code, name, created_at, updated_at
		FROM analytics.baskets
		WHERE code = $1
	`, code).Scan(&b.Code, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT symbol, weight
		FROM analytics.basket_constituents
		WHERE basket_code = $1
		ORDER BY symbol ASC
	`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c contracts.BasketConstituent
		if err := rows.Scan(&c.Symbol, &c.Weight); err != nil {
			return nil, err
		}
		b.Constituents = append(b.Constituents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

// List retrieves every basket definition
func (r *Repository) List(ctx context.Context) ([]*contracts.Basket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code
		FROM analytics.baskets
		ORDER BY code ASC
	`)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	baskets := make([]*contracts.Basket, 0, len(codes))
	for _, code := range codes {
		b, err := r.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		if b != nil {
			baskets = append(baskets, b)
		}
	}
	return baskets, nil
}
