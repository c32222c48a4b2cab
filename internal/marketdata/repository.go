package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfolio/backend/internal/contracts"
)

// Repository stores daily prices and implements contracts.PriceReader
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new price repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts a single price record
func (r *Repository) Save(ctx context.Context, price *contracts.Price) error {
	query := `
		INSERT INTO marketdata.daily_prices (ticker, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
	`

	_, err := r.pool.Exec(ctx, query,
		price.Ticker, price.Date, price.Open, price.High, price.Low, price.Close, price.Volume,
	)
	return err
}

// SaveBatch upserts multiple price records
func (r *Repository) SaveBatch(ctx context.Context, prices []contracts.Price) error {
	if len(prices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO marketdata.daily_prices (ticker, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
	`
	for _, p := range prices {
		batch.Queue(query, p.Ticker, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range prices {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetCloses retrieves prices for a ticker within a date range, oldest first
func (r *Repository) GetCloses(ctx context.Context, ticker string, rng contracts.DateRange) ([]contracts.Price, error) {
	query := `
		SELECT ticker, trade_date, open_price, high_price, low_price, close_price, volume
		FROM marketdata.daily_prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []contracts.Price
	for rows.Next() {
		var p contracts.Price
		if err := rows.Scan(&p.Ticker, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// LastPriceDate returns the most recent stored trade date for a ticker.
// Zero time when nothing is stored.
func (r *Repository) LastPriceDate(ctx context.Context, ticker string) (time.Time, error) {
	query := `
		SELECT trade_date
		FROM marketdata.daily_prices
		WHERE ticker = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var date time.Time
	err := r.pool.QueryRow(ctx, query, ticker).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return date, nil
}
