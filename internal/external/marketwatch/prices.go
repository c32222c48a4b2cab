package marketwatch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/openfolio/backend/internal/contracts"
)

// FetchPrices scrapes the historical quotes table for a ticker. The
// download page caps at roughly one year per request; longer ranges are
// the API providers' job.
func (c *Client) FetchPrices(ctx context.Context, ticker string, rng contracts.DateRange) ([]contracts.Price, error) {
	fullURL := fmt.Sprintf(
		"%s/investing/stock/%s/download-data?startDate=%s&endDate=%s",
		c.baseURL, strings.ToLower(ticker),
		rng.From.Format("01/02/2006"), rng.To.Format("01/02/2006"),
	)

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
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

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}

	prices := c.parseQuoteTable(ticker, doc)
	if len(prices) == 0 {
		// An empty table on a 200 page usually means an unknown symbol
		if doc.Find(".no-results, .error-page").Length() > 0 {
			return nil, contracts.ErrSymbolNotSupported
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(prices),
	}).Debug("Fetched MarketWatch prices")
	return prices, nil
}

// parseQuoteTable extracts rows of Date/Open/High/Low/Close from the
// historical quotes table. Rows that fail to parse are skipped.
func (c *Client) parseQuoteTable(ticker string, doc *goquery.Document) []contracts.Price {
	var prices []contracts.Price

	doc.Find("table.table--overflow tbody tr, .historical-data tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		date, err := time.Parse("01/02/2006", dateText)
		if err != nil {
			return
		}

		open := parsePrice(cells.Eq(1).Text())
		high := parsePrice(cells.Eq(2).Text())
		low := parsePrice(cells.Eq(3).Text())
		closePrice := parsePrice(cells.Eq(4).Text())
		if closePrice == 0 {
			return
		}

		var volume int64
		if cells.Length() > 5 {
			volume = parseVolume(cells.Eq(5).Text())
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
	})

	return prices
}

// parsePrice handles "$1,234.56" formatting
func parsePrice(text string) float64 {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "$")
	text = strings.ReplaceAll(text, ",", "")

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return value
}

// parseVolume handles "1.2M" / "345.6K" suffixes
func parseVolume(text string) int64 {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "M"):
		multiplier = 1e6
		text = strings.TrimSuffix(text, "M")
	case strings.HasSuffix(text, "K"):
		multiplier = 1e3
		text = strings.TrimSuffix(text, "K")
	case strings.HasSuffix(text, "B"):
		multiplier = 1e9
		text = strings.TrimSuffix(text, "B")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int64(value * multiplier)
}
