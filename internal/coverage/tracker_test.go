package coverage

import (
	"context"
	"testing"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/logger"
)

// memRepo is an in-memory CoverageRepository for tracker tests
type memRepo struct {
	records map[string]*contracts.ProviderCoverageRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*contracts.ProviderCoverageRecord)}
}

func (m *memRepo) key(ticker, provider string) string { return ticker + "|" + provider }

func (m *memRepo) Get(_ context.Context, ticker, provider string) (*contracts.ProviderCoverageRecord, error) {
	rec, ok := m.records[m.key(ticker, provider)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) GetByTicker(_ context.Context, ticker string) ([]*contracts.ProviderCoverageRecord, error) {
	var out []*contracts.ProviderCoverageRecord
	for _, rec := range m.records {
		if rec.Ticker == ticker {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) Upsert(_ context.Context, rec *contracts.ProviderCoverageRecord) error {
	cp := *rec
	m.records[m.key(rec.Ticker, rec.Provider)] = &cp
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func TestTracker_DemotionAfterThreshold(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, 3, testLogger())
	ctx := context.Background()

	// Two failures are a transient streak, not a demotion
	for i := 0; i < 2; i++ {
		if err := tracker.RecordAttempt(ctx, "AAPL", "tiingo", false, "timeout", 0); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}
	rec, _ := repo.Get(ctx, "AAPL", "tiingo")
	if rec.Status == contracts.CoverageFailed {
		t.Errorf("status = failed after 2 failures, want no demotion below threshold")
	}

	// Third consecutive failure demotes
	if err := tracker.RecordAttempt(ctx, "AAPL", "tiingo", false, "timeout", 0); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	rec, _ = repo.Get(ctx, "AAPL", "tiingo")
	if rec.Status != contracts.CoverageFailed {
		t.Errorf("status = %s after 3 failures, want failed", rec.Status)
	}
	if rec.FailureStreak != 3 || rec.TotalFailures != 3 {
		t.Errorf("streak/total = %d/%d, want 3/3", rec.FailureStreak, rec.TotalFailures)
	}
}

func TestTracker_SuccessResetsStreakKeepsTotals(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, 3, testLogger())
	ctx := context.Background()

	_ = tracker.RecordAttempt(ctx, "MSFT", "stooq", false, "parse error", 0)
	_ = tracker.RecordAttempt(ctx, "MSFT", "stooq", false, "parse error", 0)
	_ = tracker.RecordAttempt(ctx, "MSFT", "stooq", true, "", 120)

	rec, _ := repo.Get(ctx, "MSFT", "stooq")
	if rec.Status != contracts.CoverageActive {
		t.Errorf("status = %s, want active after success", rec.Status)
	}
	if rec.FailureStreak != 0 {
		t.Errorf("failure streak = %d, want 0 after success", rec.FailureStreak)
	}
	if rec.TotalFailures != 2 {
		t.Errorf("total failures = %d, want cumulative 2 preserved", rec.TotalFailures)
	}
	if rec.RecordsFetched != 120 {
		t.Errorf("records fetched = %d, want 120", rec.RecordsFetched)
	}
	if rec.LastSuccess == nil {
		t.Error("last success not set")
	}
}

func TestTracker_FallbackAfterDemotion(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, 3, testLogger())
	ctx := context.Background()

	// Demote tiingo for AAPL with three consecutive failures
	for i := 0; i < 3; i++ {
		_ = tracker.RecordAttempt(ctx, "AAPL", "tiingo", false, "HTTP 500", 0)
	}

	order, err := tracker.SelectProviders(ctx, "AAPL", []string{"tiingo", "stooq", "marketwatch"})
	if err != nil {
		t.Fatalf("SelectProviders failed: %v", err)
	}

	// Providers with no history (unknown) must now outrank the failed one
	if len(order) != 3 {
		t.Fatalf("got %d providers, want 3", len(order))
	}
	if order[len(order)-1] != "tiingo" {
		t.Errorf("order = %v, want tiingo last after demotion", order)
	}
}

func TestOrderProviders(t *testing.T) {
	records := map[string]*contracts.ProviderCoverageRecord{
		"tiingo":      {Provider: "tiingo", Status: contracts.CoverageFailed, FailureStreak: 4},
		"stooq":       {Provider: "stooq", Status: contracts.CoverageActive},
		"marketwatch": {Provider: "marketwatch", Status: contracts.CoverageNotSupported},
	}
	candidates := []string{"tiingo", "stooq", "marketwatch"}

	order := OrderProviders(records, candidates)

	want := []string{"stooq", "tiingo"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestOrderProviders_PriorityTiebreak(t *testing.T) {
	// No history at all: configured priority order wins
	order := OrderProviders(nil, []string{"tiingo", "stooq"})
	if order[0] != "tiingo" || order[1] != "stooq" {
		t.Errorf("order = %v, want configured priority preserved", order)
	}
}
