package ledger

import (
	"testing"
	"time"

	"github.com/openfolio/backend/internal/contracts"
)

func TestPositionsInput_HashOrderIndependent(t *testing.T) {
	a := PositionsInput{
		ViewType:       contracts.ViewTypeAccount,
		ViewID:         "acct-1",
		TransactionIDs: []string{"t3", "t1", "t2"},
	}
	b := PositionsInput{
		ViewType:       contracts.ViewTypeAccount,
		ViewID:         "acct-1",
		TransactionIDs: []string{"t1", "t2", "t3"},
	}

	if a.Hash() != b.Hash() {
		t.Error("same transaction set in different orders must hash identically")
	}
}

func TestPositionsInput_HashChangesWithSet(t *testing.T) {
	a := PositionsInput{ViewType: contracts.ViewTypeAccount, ViewID: "acct-1",
		TransactionIDs: []string{"t1", "t2"}}
	b := PositionsInput{ViewType: contracts.ViewTypeAccount, ViewID: "acct-1",
		TransactionIDs: []string{"t1", "t2", "t3"}}

	if a.Hash() == b.Hash() {
		t.Error("adding a transaction must change the hash")
	}
}

func TestPositionsInput_HashStableAcrossDays(t *testing.T) {
	// The positions hash carries no date: an unchanged transaction set
	// hashes identically on every pass, so the ledger can skip.
	in := PositionsInput{ViewType: contracts.ViewTypeAccount, ViewID: "acct-1",
		TransactionIDs: []string{"t1", "t2"}}

	first := in.Hash()
	if in.Hash() != first {
		t.Error("hash must be deterministic across invocations")
	}
}

func TestReturnsInput_MapOrderIndependent(t *testing.T) {
	d1 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	// Two maps with identical content; Go map iteration order varies,
	// the digest must not.
	a := ReturnsInput{ViewType: contracts.ViewTypeAccount, ViewID: "x", PositionsHash: "p",
		PriceLastDates: map[string]time.Time{"AAPL": d1, "MSFT": d2, "NVDA": d1}}
	b := ReturnsInput{ViewType: contracts.ViewTypeAccount, ViewID: "x", PositionsHash: "p",
		PriceLastDates: map[string]time.Time{"NVDA": d1, "AAPL": d1, "MSFT": d2}}

	for i := 0; i < 10; i++ {
		if a.Hash() != b.Hash() {
			t.Fatal("map enumeration order leaked into the hash")
		}
	}
}

func TestReturnsInput_UpstreamChangePropagates(t *testing.T) {
	d := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	base := ReturnsInput{ViewType: contracts.ViewTypeAccount, ViewID: "x",
		PositionsHash: "p1", PriceLastDates: map[string]time.Time{"AAPL": d}}

	changedPositions := base
	changedPositions.PositionsHash = "p2"
	if base.Hash() == changedPositions.Hash() {
		t.Error("positions hash change must propagate into the returns hash")
	}

	changedPrices := ReturnsInput{ViewType: contracts.ViewTypeAccount, ViewID: "x",
		PositionsHash: "p1",
		PriceLastDates: map[string]time.Time{"AAPL": d.AddDate(0, 0, 1)}}
	if base.Hash() == changedPrices.Hash() {
		t.Error("newer price date must change the returns hash")
	}
}

func TestRiskInput_WindowAffectsHash(t *testing.T) {
	d := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	a := RiskInput{ViewType: contracts.ViewTypeAccount, ViewID: "x",
		ReturnsHash: "r", LastReturnDate: d, WindowDays: 252}
	b := a
	b.WindowDays = 126

	if a.Hash() == b.Hash() {
		t.Error("window size is a hash-relevant input")
	}
}
