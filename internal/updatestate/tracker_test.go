package updatestate

import (
	"context"
	"testing"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/logger"
)

type memRepo struct {
	states map[string]*contracts.UpdateState
}

func newMemRepo() *memRepo {
	return &memRepo{states: make(map[string]*contracts.UpdateState)}
}

func (m *memRepo) key(et contracts.EntityType, id string) string { return string(et) + "|" + id }

func (m *memRepo) Get(_ context.Context, et contracts.EntityType, id string) (*contracts.UpdateState, error) {
	state, ok := m.states[m.key(et, id)]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (m *memRepo) Upsert(_ context.Context, state *contracts.UpdateState) error {
	cp := *state
	m.states[m.key(state.EntityType, state.EntityID)] = &cp
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTracker_FetchRange_Incremental(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, testLogger())
	ctx := context.Background()

	if err := tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "AAPL", day(2026, 8, 20), "tiingo"); err != nil {
		t.Fatalf("MarkUpdated failed: %v", err)
	}

	rng, err := tracker.FetchRange(ctx, contracts.EntitySecurityPrices, "AAPL", day(2026, 8, 24))
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}

	if !rng.From.Equal(day(2026, 8, 21)) {
		t.Errorf("from = %s, want last update + 1 day", rng.From.Format("2006-01-02"))
	}
	if !rng.To.Equal(day(2026, 8, 24)) {
		t.Errorf("to = %s, want today", rng.To.Format("2006-01-02"))
	}
}

func TestTracker_FetchRange_AlreadyCurrent(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, testLogger())
	ctx := context.Background()

	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "AAPL", day(2026, 8, 24), "tiingo")

	rng, err := tracker.FetchRange(ctx, contracts.EntitySecurityPrices, "AAPL", day(2026, 8, 24))
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if !rng.IsZero() {
		t.Errorf("range = %+v, want empty when already current", rng)
	}
}

func TestTracker_FetchRange_Backfill(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, testLogger())
	ctx := context.Background()

	_ = tracker.MarkUpdated(ctx, contracts.EntityBenchmark, "SPX", day(2026, 8, 20), "stooq")
	_ = tracker.FlagBackfill(ctx, contracts.EntityBenchmark, "SPX", day(2026, 7, 1))

	rng, err := tracker.FetchRange(ctx, contracts.EntityBenchmark, "SPX", day(2026, 8, 24))
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if !rng.From.Equal(day(2026, 7, 1)) {
		t.Errorf("from = %s, want backfill start", rng.From.Format("2006-01-02"))
	}
}

func TestTracker_MarkUpdated_Monotonic(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, testLogger())
	ctx := context.Background()

	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "MSFT", day(2026, 8, 20), "tiingo")
	// A stale fetch completing late must not regress the date
	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "MSFT", day(2026, 8, 10), "stooq")

	state, _ := repo.Get(ctx, contracts.EntitySecurityPrices, "MSFT")
	if !state.LastUpdateDate.Equal(day(2026, 8, 20)) {
		t.Errorf("last update = %s, want monotonic 2026-08-20", state.LastUpdateDate.Format("2006-01-02"))
	}
}

func TestTracker_BackfillSurvivesPartialCoverage(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, testLogger())
	ctx := context.Background()

	// Continuous coverage through Aug 20, then a gap back in July is
	// detected. A fetch that reaches only partway into the gap must not
	// clear the flag: last_update_date never regresses, so the rest of
	// the gap would otherwise be lost for good.
	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "AMD", day(2026, 8, 20), "tiingo")
	_ = tracker.FlagBackfill(ctx, contracts.EntitySecurityPrices, "AMD", day(2026, 7, 15))

	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "AMD", day(2026, 7, 18), "tiingo")

	state, _ := repo.Get(ctx, contracts.EntitySecurityPrices, "AMD")
	if !state.NeedsBackfill {
		t.Fatal("needs_backfill cleared by a partial fetch into the gap")
	}
	if !state.BackfillStart.Equal(day(2026, 7, 15)) {
		t.Errorf("backfill start = %s, want unchanged 2026-07-15", state.BackfillStart.Format("2006-01-02"))
	}
	if !state.LastUpdateDate.Equal(day(2026, 8, 20)) {
		t.Errorf("last update = %s, want monotonic 2026-08-20", state.LastUpdateDate.Format("2006-01-02"))
	}

	// A fetch spanning the whole gap closes it
	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "AMD", day(2026, 8, 20), "tiingo")
	state, _ = repo.Get(ctx, contracts.EntitySecurityPrices, "AMD")
	if state.NeedsBackfill {
		t.Error("needs_backfill still set after covering the whole gap")
	}
}

func TestTracker_BackfillClearsWhenCovered(t *testing.T) {
	repo := newMemRepo()
	tracker := NewTracker(repo, testLogger())
	ctx := context.Background()

	_ = tracker.FlagBackfill(ctx, contracts.EntitySecurityPrices, "NVDA", day(2026, 7, 15))
	_ = tracker.MarkUpdated(ctx, contracts.EntitySecurityPrices, "NVDA", day(2026, 8, 24), "tiingo")

	state, _ := repo.Get(ctx, contracts.EntitySecurityPrices, "NVDA")
	if state.NeedsBackfill {
		t.Error("needs_backfill still set after covering the backfill range")
	}
}
