package stooq

import (
	"testing"

	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/logger"
)

func TestParseCSV(t *testing.T) {
	body := `Date,Open,High,Low,Close,Volume
2026-08-20,226.50,229.10,225.80,228.40,51234567
2026-08-21,228.90,230.00,227.10,229.75,43210987
`

	c := &Client{logger: logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})}
	prices, err := c.parseCSV("AAPL", body)
	if err != nil {
		t.Fatalf("parseCSV failed: %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if prices[0].Close != 228.40 {
		t.Errorf("close = %f, want 228.40", prices[0].Close)
	}
	if prices[1].Date.Format("2006-01-02") != "2026-08-21" {
		t.Errorf("date = %s, want 2026-08-21", prices[1].Date.Format("2006-01-02"))
	}
	if prices[0].Volume != 51234567 {
		t.Errorf("volume = %d, want 51234567", prices[0].Volume)
	}
}

func TestParseCSV_SkipsMalformedRows(t *testing.T) {
	body := `Date,Open,High,Low,Close,Volume
not-a-date,1,2,3,4,5
2026-08-21,228.90,230.00,227.10,229.75,100
`

	c := &Client{logger: logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})}
	prices, err := c.parseCSV("AAPL", body)
	if err != nil {
		t.Fatalf("parseCSV failed: %v", err)
	}
	if len(prices) != 1 {
		t.Errorf("got %d prices, want 1 (malformed row skipped)", len(prices))
	}
}
