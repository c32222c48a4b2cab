package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/logger"
)

type memRepo struct {
	records map[string]*contracts.ComputationRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*contracts.ComputationRecord)}
}

func (m *memRepo) key(ct contracts.ComputationType, vt contracts.ViewType, id string) string {
	return string(ct) + "|" + string(vt) + "|" + id
}

func (m *memRepo) Get(_ context.Context, ct contracts.ComputationType, vt contracts.ViewType, id string) (*contracts.ComputationRecord, error) {
	rec, ok := m.records[m.key(ct, vt, id)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) Upsert(_ context.Context, rec *contracts.ComputationRecord) error {
	key := m.key(rec.ComputationType, rec.ViewType, rec.ViewID)
	cp := *rec
	// Mirror the SQL COALESCE: skip transitions keep the stored timestamp
	if existing, ok := m.records[key]; ok && cp.LastComputed.IsZero() {
		cp.LastComputed = existing.LastComputed
	}
	m.records[key] = &cp
	return nil
}

func (m *memRepo) ListByView(_ context.Context, vt contracts.ViewType, id string) ([]*contracts.ComputationRecord, error) {
	var out []*contracts.ComputationRecord
	for _, rec := range m.records {
		if rec.ViewType == vt && rec.ViewID == id {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func testLedger() (*Ledger, *memRepo) {
	repo := newMemRepo()
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	return New(repo, log), repo
}

func TestLedger_Idempotent(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	in := ReturnsInput{
		ViewType:      contracts.ViewTypeAccount,
		ViewID:        "acct-1",
		PositionsHash: "abc123",
		PriceLastDates: map[string]time.Time{
			"AAPL": time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		},
	}
	hash := in.Hash()

	// First pass: no record, must recompute
	should, err := l.ShouldRecompute(ctx, contracts.ComputationReturns, contracts.ViewTypeAccount, "acct-1", hash)
	require.NoError(t, err)
	assert.True(t, should, "first pass must recompute")

	// Record a completed run with the same hash
	err = l.RecordResult(ctx, contracts.ComputationReturns, contracts.ViewTypeAccount, "acct-1",
		hash, "out-1", contracts.StatusCompleted, 42*time.Millisecond, nil)
	require.NoError(t, err)

	// Second pass with identical inputs: skip
	should, err = l.ShouldRecompute(ctx, contracts.ComputationReturns, contracts.ViewTypeAccount, "acct-1", hash)
	require.NoError(t, err)
	assert.False(t, should, "unchanged inputs must skip")
}

func TestLedger_SkipPreservesLastComputed(t *testing.T) {
	l, repo := testLedger()
	ctx := context.Background()

	err := l.RecordResult(ctx, contracts.ComputationRisk, contracts.ViewTypeAccount, "acct-1",
		"h1", "", contracts.StatusCompleted, time.Millisecond, nil)
	require.NoError(t, err)

	before, _ := repo.Get(ctx, contracts.ComputationRisk, contracts.ViewTypeAccount, "acct-1")
	computedAt := before.LastComputed

	should, err := l.ShouldRecompute(ctx, contracts.ComputationRisk, contracts.ViewTypeAccount, "acct-1", "h1")
	require.NoError(t, err)
	assert.False(t, should)

	after, _ := repo.Get(ctx, contracts.ComputationRisk, contracts.ViewTypeAccount, "acct-1")
	assert.Equal(t, contracts.StatusSkipped, after.Status)
	assert.Equal(t, computedAt, after.LastComputed, "skip must not touch last_computed")
}

func TestLedger_FailedAlwaysRetries(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	err := l.RecordResult(ctx, contracts.ComputationReturns, contracts.ViewTypeGroup, "g-7",
		"h1", "", contracts.StatusFailed, time.Second, errors.New("price series incomplete"))
	require.NoError(t, err)

	// Same hash, but failed status forces recompute
	should, err := l.ShouldRecompute(ctx, contracts.ComputationReturns, contracts.ViewTypeGroup, "g-7", "h1")
	require.NoError(t, err)
	assert.True(t, should, "failed status must force recompute even with matching hash")
}

func TestLedger_HashChangeForcesRecompute(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	err := l.RecordResult(ctx, contracts.ComputationReturns, contracts.ViewTypeAccount, "acct-2",
		"h-old", "", contracts.StatusCompleted, time.Millisecond, nil)
	require.NoError(t, err)

	should, err := l.ShouldRecompute(ctx, contracts.ComputationReturns, contracts.ViewTypeAccount, "acct-2", "h-new")
	require.NoError(t, err)
	assert.True(t, should)
}

func TestLedger_Status(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	_ = l.RecordResult(ctx, contracts.ComputationReturns, contracts.ViewTypeAccount, "acct-3",
		"h1", "", contracts.StatusCompleted, time.Millisecond, nil)
	_ = l.RecordResult(ctx, contracts.ComputationRisk, contracts.ViewTypeAccount, "acct-3",
		"h2", "", contracts.StatusFailed, time.Millisecond, errors.New("boom"))

	status, err := l.Status(ctx, contracts.ViewTypeAccount, "acct-3", map[contracts.ComputationType]string{
		contracts.ComputationReturns: "h1",
		contracts.ComputationRisk:    "h2",
	})
	require.NoError(t, err)

	assert.True(t, status.Current[contracts.ComputationReturns])
	assert.False(t, status.Current[contracts.ComputationRisk], "failed record is never current")
}
