package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openfolio/backend/internal/contracts"
)

// FetchPrices downloads daily closes for a ticker from the Stooq CSV
// endpoint. US symbols need the ".us" suffix.
func (c *Client) FetchPrices(ctx context.Context, ticker string, rng contracts.DateRange) ([]contracts.Price, error) {
	symbol := strings.ToLower(ticker)
	if !strings.Contains(symbol, ".") {
		symbol += ".us"
	}

	fullURL := fmt.Sprintf(
		"%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL, symbol,
		rng.From.Format("20060102"), rng.To.Format("20060102"),
	)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	// Stooq answers "No data" in the body for unknown symbols
	if strings.HasPrefix(strings.TrimSpace(string(body)), "No data") {
		return nil, contracts.ErrSymbolNotSupported
	}

	prices, err := c.parseCSV(ticker, string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(prices),
	}).Debug("Fetched Stooq prices")
	return prices, nil
}

// parseCSV parses the Date,Open,High,Low,Close,Volume download format
func (c *Client) parseCSV(ticker, body string) ([]contracts.Price, error) {
	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	var prices []contracts.Price
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false // header row
			continue
		}
		if len(record) < 5 {
			continue
		}

		date, err := time.Parse("2006-01-02", record[0])
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(record[1], 64)
		high, _ := strconv.ParseFloat(record[2], 64)
		low, _ := strconv.ParseFloat(record[3], 64)
		closePrice, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			continue
		}
		var volume int64
		if len(record) > 5 {
			volume, _ = strconv.ParseInt(record[5], 10, 64)
		}

		prices = append(prices, contracts.Price{
			Ticker: ticker,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return prices, nil
}
