package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/openfolio/backend/internal/contracts"
)

// Input hashes identify whether a computation's upstream data changed.
// Each computation type has an explicit typed input struct whose fields
// are exactly the hash-relevant inputs: nothing incidental (timestamps,
// request IDs) may leak in, and set-valued fields are serialized sorted
// so enumeration order never changes the digest.

// HashableInput is implemented by every computation input struct
type HashableInput interface {
	ComputationType() contracts.ComputationType
	Hash() string
}

// PositionsInput identifies the transaction set behind a view's
// position snapshots. The id set alone is the identity: any edit to the
// set changes the hash, and nothing date-shaped is stamped in that
// would churn the hash without a data change.
type PositionsInput struct {
	ViewType       contracts.ViewType
	ViewID         string
	TransactionIDs []string
}

func (in PositionsInput) ComputationType() contracts.ComputationType {
	return contracts.ComputationPositions
}

func (in PositionsInput) Hash() string {
	h := sha256.New()
	writeField(h, "view", string(in.ViewType)+"/"+in.ViewID)
	writeSortedSet(h, "txn_ids", in.TransactionIDs)
	return hex.EncodeToString(h.Sum(nil))
}

// ReturnsInput covers everything the TWR series depends on: the
// positions themselves plus how far each priced security's series runs.
type ReturnsInput struct {
	ViewType       contracts.ViewType
	ViewID         string
	PositionsHash  string
	PriceLastDates map[string]time.Time // ticker -> last stored price date
}

func (in ReturnsInput) ComputationType() contracts.ComputationType {
	return contracts.ComputationReturns
}

func (in ReturnsInput) Hash() string {
	h := sha256.New()
	writeField(h, "view", string(in.ViewType)+"/"+in.ViewID)
	writeField(h, "positions_hash", in.PositionsHash)
	writeSortedMap(h, "price_last_dates", in.PriceLastDates)
	return hex.EncodeToString(h.Sum(nil))
}

// RiskInput depends only on the returns series identity and the window
type RiskInput struct {
	ViewType       contracts.ViewType
	ViewID         string
	ReturnsHash    string
	LastReturnDate time.Time
	WindowDays     int
}

func (in RiskInput) ComputationType() contracts.ComputationType {
	return contracts.ComputationRisk
}

func (in RiskInput) Hash() string {
	h := sha256.New()
	writeField(h, "view", string(in.ViewType)+"/"+in.ViewID)
	writeField(h, "returns_hash", in.ReturnsHash)
	writeField(h, "last_return_date", dayString(in.LastReturnDate))
	writeField(h, "window_days", fmt.Sprintf("%d", in.WindowDays))
	return hex.EncodeToString(h.Sum(nil))
}

// BenchmarkInput covers the portfolio series plus every compared
// benchmark series' identity.
type BenchmarkInput struct {
	ViewType           contracts.ViewType
	ViewID             string
	ReturnsHash        string
	BenchmarkLastDates map[string]time.Time // benchmark code -> last stored date
	WindowDays         int
}

func (in BenchmarkInput) ComputationType() contracts.ComputationType {
	return contracts.ComputationBenchmarks
}

func (in BenchmarkInput) Hash() string {
	h := sha256.New()
	writeField(h, "view", string(in.ViewType)+"/"+in.ViewID)
	writeField(h, "returns_hash", in.ReturnsHash)
	writeSortedMap(h, "benchmark_last_dates", in.BenchmarkLastDates)
	writeField(h, "window_days", fmt.Sprintf("%d", in.WindowDays))
	return hex.EncodeToString(h.Sum(nil))
}

// FactorInput mirrors BenchmarkInput for factor series
type FactorInput struct {
	ViewType        contracts.ViewType
	ViewID          string
	ReturnsHash     string
	FactorLastDates map[string]time.Time
	WindowDays      int
}

func (in FactorInput) ComputationType() contracts.ComputationType {
	return contracts.ComputationFactors
}

func (in FactorInput) Hash() string {
	h := sha256.New()
	writeField(h, "view", string(in.ViewType)+"/"+in.ViewID)
	writeField(h, "returns_hash", in.ReturnsHash)
	writeSortedMap(h, "factor_last_dates", in.FactorLastDates)
	writeField(h, "window_days", fmt.Sprintf("%d", in.WindowDays))
	return hex.EncodeToString(h.Sum(nil))
}

// Canonical serialization helpers. Field order is fixed by the callers;
// sets and maps are sorted before writing.

func writeField(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s=%s;", name, value)
}

func writeSortedSet(w io.Writer, name string, values []string) {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	fmt.Fprintf(w, "%s=[", name)
	for _, v := range sorted {
		fmt.Fprintf(w, "%s,", v)
	}
	fmt.Fprint(w, "];")
}

func writeSortedMap(w io.Writer, name string, m map[string]time.Time) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s={", name)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:%s,", k, dayString(m[k]))
	}
	fmt.Fprint(w, "};")
}

func dayString(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}
