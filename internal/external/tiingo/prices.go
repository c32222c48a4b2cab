package tiingo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openfolio/backend/internal/contracts"
)

// priceRow is one element of the Tiingo daily price response
type priceRow struct {
	Date   string  `json:"date"` // RFC3339
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// FetchPrices fetches daily closes for a ticker from the Tiingo EOD API
func (c *Client) FetchPrices(ctx context.Context, ticker string, rng contracts.DateRange) ([]contracts.Price, error) {
	fullURL := fmt.Sprintf(
		"%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&token=%s",
		c.baseURL, ticker,
		rng.From.Format("2006-01-02"), rng.To.Format("2006-01-02"),
		c.apiKey,
	)

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, contracts.ErrSymbolNotSupported
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	var rows []priceRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	prices := make([]contracts.Price, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(time.RFC3339, row.Date)
		if err != nil {
			continue
		}
		prices = append(prices, contracts.Price{
			Ticker: ticker,
			Date:   date.UTC().Truncate(24 * time.Hour),
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(prices),
	}).Debug("Fetched Tiingo prices")
	return prices, nil
}
