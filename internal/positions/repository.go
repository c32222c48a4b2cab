package positions

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository reads position snapshots and view membership. Snapshots are
// produced upstream by transaction rollup; this layer only reads them.
// Implements contracts.PositionSource and contracts.ViewResolver.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new positions repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPositionsAsOf returns ticker -> shares held by an account at start
// of day. The snapshot effective on a date is the newest one at or
// before it.
func (r *Repository) GetPositionsAsOf(ctx context.Context, accountID string, date time.Time) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (ticker) ticker, shares
		FROM portfolio.position_snapshots
		WHERE account_id = $1 AND snapshot_date <= $2
		ORDER BY ticker, snapshot_date DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := make(map[string]float64)
	for rows.Next() {
		var ticker string
		var qty float64
		if err := rows.Scan(&ticker, &qty); err != nil {
			return nil, err
		}
		if qty != 0 {
			shares[ticker] = qty
		}
	}
	return shares, rows.Err()
}

// ListAccountsWithActivity returns accounts holding any position at
// start of the given day
func (r *Repository) ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT account_id
		FROM portfolio.position_snapshots
		WHERE snapshot_date <= $1 AND shares <> 0
		ORDER BY account_id
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		accounts = append(accounts, id)
	}
	return accounts, rows.Err()
}

// TransactionIDsThrough returns the ids of all transactions affecting an
// account up to and including a date. This is the identity of the
// position inputs: any insert, amendment, or backdated trade changes it.
func (r *Repository) TransactionIDsThrough(ctx context.Context, accountID string, date time.Time) ([]string, error) {
	query := `
		SELECT transaction_id
		FROM portfolio.transactions
		WHERE account_id = $1 AND trade_date <= $2
		ORDER BY transaction_id
	`

	rows, err := r.pool.Query(ctx, query, accountID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AccountsForView resolves a view to its member accounts. An account
// view is the account itself; a group view expands its membership.
func (r *Repository) AccountsForView(ctx context.Context, viewType contracts.ViewType, viewID string) ([]string, error) {
	if viewType == contracts.ViewTypeAccount {
		return []string{viewID}, nil
	}

	query := `
		SELECT account_id
		FROM portfolio.group_members
		WHERE group_id = $1
		ORDER BY account_id
	`

	rows, err := r.pool.Query(ctx, query, viewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		accounts = append(accounts, id)
	}
	return accounts, rows.Err()
}
