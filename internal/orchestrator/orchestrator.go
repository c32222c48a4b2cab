package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/internal/ledger"
	"github.com/openfolio/backend/pkg/logger"
)

// UnitOutcome is the per-unit result of one orchestrator pass
type UnitOutcome string

const (
	OutcomeUpdated UnitOutcome = "updated"
	OutcomeSkipped UnitOutcome = "skipped"
	OutcomeBusy    UnitOutcome = "busy"
	OutcomeFailed  UnitOutcome = "failed"
)

// ReturnsEngine computes and persists a view's TWR series
type ReturnsEngine interface {
	Compute(ctx context.Context, vt contracts.ViewType, viewID string, rng contracts.DateRange) ([]contracts.ReturnObservation, error)
}

// RiskEngine computes and persists a view's risk observation
type RiskEngine interface {
	ComputeAsOf(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) (*contracts.RiskObservation, error)
}

// BenchmarksEngine computes and persists a view's benchmark metrics
type BenchmarksEngine interface {
	ComputeAsOf(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) ([]contracts.BenchmarkMetric, error)
}

// FactorsEngine computes and persists a view's factor exposures
type FactorsEngine interface {
	ComputeAsOf(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) ([]contracts.FactorExposure, error)
}

// PriceFetcher brings a ticker's stored series up to date
type PriceFetcher interface {
	EnsurePrices(ctx context.Context, ticker string, today time.Time) error
}

// Config carries the orchestrator's tunables
type Config struct {
	RiskWindowDays      int
	BenchmarkWindowDays int
	ReturnsLookbackDays int
	BenchmarkCodes      []string
	MaxConcurrentViews  int
}

// View identifies one recomputation target
type View struct {
	Type contracts.ViewType `json:"view_type"`
	ID   string             `json:"view_id"`
}

// ViewResult reports the outcome of each pipeline stage for one view
type ViewResult struct {
	View     View                                    `json:"view"`
	Outcomes map[contracts.ComputationType]UnitOutcome `json:"outcomes"`
	Errors   map[contracts.ComputationType]string      `json:"errors,omitempty"`
}

// BatchResult aggregates a multi-view pass
type BatchResult struct {
	Views   []ViewResult `json:"views"`
	Updated int          `json:"updated"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
}

// Orchestrator drives the analytics pipeline for views. Stages run in
// dependency order: positions identity, then price currency, then
// returns, then risk, benchmarks, and factors concurrently. Each stage
// is gated by the dependency ledger and guarded by a per-unit lock; a
// failed stage is recorded and stops only its own downstream chain,
// never the sibling views of a batch.
type Orchestrator struct {
	positions contracts.PositionSource
	resolver  contracts.ViewResolver
	prices    contracts.PriceReader
	returns   contracts.ReturnRepository
	bench     contracts.BenchmarkRepository
	factors   contracts.FactorRepository

	fetcher    PriceFetcher
	returnsEng ReturnsEngine
	riskEng    RiskEngine
	benchEng   BenchmarksEngine
	factorsEng FactorsEngine

	ledger *ledger.Ledger
	locks  *KeyLock
	cfg    Config
	logger *logger.Logger
}

// New creates an orchestrator
func New(
	positions contracts.PositionSource,
	resolver contracts.ViewResolver,
	prices contracts.PriceReader,
	returns contracts.ReturnRepository,
	bench contracts.BenchmarkRepository,
	factors contracts.FactorRepository,
	fetcher PriceFetcher,
	returnsEng ReturnsEngine,
	riskEng RiskEngine,
	benchEng BenchmarksEngine,
	factorsEng FactorsEngine,
	led *ledger.Ledger,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	if cfg.MaxConcurrentViews <= 0 {
		cfg.MaxConcurrentViews = 1
	}
	if cfg.ReturnsLookbackDays <= 0 {
		cfg.ReturnsLookbackDays = 730
	}
	return &Orchestrator{
		positions:  positions,
		resolver:   resolver,
		prices:     prices,
		returns:    returns,
		bench:      bench,
		factors:    factors,
		fetcher:    fetcher,
		returnsEng: returnsEng,
		riskEng:    riskEng,
		benchEng:   benchEng,
		factorsEng: factorsEng,
		ledger:     led,
		locks:      NewKeyLock(),
		cfg:        cfg,
		logger:     log,
	}
}

// RecomputeView runs the full pipeline for one view as of a date.
// Provider fetches happen before any unit lock is taken; a slow
// external API never blocks a sibling computation.
func (o *Orchestrator) RecomputeView(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) (*ViewResult, error) {
	result := &ViewResult{
		View:     View{Type: vt, ID: viewID},
		Outcomes: make(map[contracts.ComputationType]UnitOutcome),
		Errors:   make(map[contracts.ComputationType]string),
	}

	accounts, err := o.resolver.AccountsForView(ctx, vt, viewID)
	if err != nil {
		return nil, fmt.Errorf("resolve view %s/%s: %w", vt, viewID, err)
	}

	tickers, err := o.heldTickers(ctx, accounts, asOf)
	if err != nil {
		return nil, err
	}

	// Price currency first, outside all locks
	for _, ticker := range tickers {
		if err := o.fetcher.EnsurePrices(ctx, ticker, asOf); err != nil {
			// A stale series degrades the result; it does not block it
			o.logger.WithError(err).WithField("ticker", ticker).Warn("Price refresh failed, computing on stored data")
		}
	}

	posInput, err := o.positionsInput(ctx, vt, viewID, accounts, asOf)
	if err != nil {
		return nil, err
	}
	o.runUnit(ctx, result, posInput, vt, viewID, func(context.Context) error {
		// Snapshots are produced upstream; the unit records their identity
		return nil
	})
	if failedOrBusy(result, contracts.ComputationPositions) {
		return result, nil
	}

	retInput, err := o.returnsInput(ctx, vt, viewID, posInput.Hash(), tickers)
	if err != nil {
		return nil, err
	}
	o.runUnit(ctx, result, retInput, vt, viewID, func(ctx context.Context) error {
		rng := contracts.DateRange{From: asOf.AddDate(0, 0, -o.cfg.ReturnsLookbackDays), To: asOf}
		_, err := o.returnsEng.Compute(ctx, vt, viewID, rng)
		return err
	})
	if failedOrBusy(result, contracts.ComputationReturns) {
		return result, nil
	}

	// Risk, benchmarks, and factors depend on returns but not on each
	// other; they run concurrently.
	returnsHash := retInput.Hash()
	lastReturn, err := o.lastReturnDate(ctx, vt, viewID)
	if err != nil {
		return nil, err
	}

	riskInput := ledger.RiskInput{
		ViewType: vt, ViewID: viewID,
		ReturnsHash: returnsHash, LastReturnDate: lastReturn,
		WindowDays: o.cfg.RiskWindowDays,
	}
	benchInput, err := o.benchmarkInput(ctx, vt, viewID, returnsHash, asOf)
	if err != nil {
		return nil, err
	}
	factorInput, err := o.factorInput(ctx, vt, viewID, returnsHash, asOf)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	run := func(input ledger.HashableInput, fn func(context.Context) error) {
		defer wg.Done()
		local := &ViewResult{
			Outcomes: make(map[contracts.ComputationType]UnitOutcome),
			Errors:   make(map[contracts.ComputationType]string),
		}
		o.runUnit(ctx, local, input, vt, viewID, fn)
		mu.Lock()
		for ct, out := range local.Outcomes {
			result.Outcomes[ct] = out
		}
		for ct, msg := range local.Errors {
			result.Errors[ct] = msg
		}
		mu.Unlock()
	}

	wg.Add(3)
	go run(riskInput, func(ctx context.Context) error {
		_, err := o.riskEng.ComputeAsOf(ctx, vt, viewID, asOf)
		return err
	})
	go run(benchInput, func(ctx context.Context) error {
		_, err := o.benchEng.ComputeAsOf(ctx, vt, viewID, asOf)
		return err
	})
	go run(factorInput, func(ctx context.Context) error {
		_, err := o.factorsEng.ComputeAsOf(ctx, vt, viewID, asOf)
		return err
	})
	wg.Wait()

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result, nil
}

// RecomputeBatch runs the pipeline for many views with bounded
// concurrency. A failing view is reported in its result; it never
// aborts the batch.
func (o *Orchestrator) RecomputeBatch(ctx context.Context, views []View, asOf time.Time) (*BatchResult, error) {
	batch := &BatchResult{}
	results := make([]ViewResult, len(views))

	sem := make(chan struct{}, o.cfg.MaxConcurrentViews)
	var wg sync.WaitGroup
	for i, v := range views {
		wg.Add(1)
		go func(i int, v View) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := o.RecomputeView(ctx, v.Type, v.ID, asOf)
			if err != nil {
				results[i] = ViewResult{
					View:     v,
					Outcomes: map[contracts.ComputationType]UnitOutcome{},
					Errors:   map[contracts.ComputationType]string{contracts.ComputationPositions: err.Error()},
				}
				return
			}
			results[i] = *res
		}(i, v)
	}
	wg.Wait()

	for _, res := range results {
		batch.Views = append(batch.Views, res)
		failed := len(res.Errors) > 0
		updated := false
		for _, out := range res.Outcomes {
			if out == OutcomeFailed {
				failed = true
			}
			if out == OutcomeUpdated {
				updated = true
			}
		}
		switch {
		case failed:
			batch.Failed++
		case updated:
			batch.Updated++
		default:
			batch.Skipped++
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"views":   len(views),
		"updated": batch.Updated,
		"skipped": batch.Skipped,
		"failed":  batch.Failed,
	}).Info("Recompute batch finished")
	return batch, nil
}

// AccountViews lists every account with holdings as a view target
func (o *Orchestrator) AccountViews(ctx context.Context, asOf time.Time) ([]View, error) {
	accounts, err := o.positions.ListAccountsWithActivity(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	views := make([]View, 0, len(accounts))
	for _, id := range accounts {
		views = append(views, View{Type: contracts.ViewTypeAccount, ID: id})
	}
	return views, nil
}

// Status reports ledger currency for one view against freshly computed
// input hashes.
func (o *Orchestrator) Status(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) (*ledger.ViewStatus, error) {
	accounts, err := o.resolver.AccountsForView(ctx, vt, viewID)
	if err != nil {
		return nil, fmt.Errorf("resolve view %s/%s: %w", vt, viewID, err)
	}
	tickers, err := o.heldTickers(ctx, accounts, asOf)
	if err != nil {
		return nil, err
	}

	posInput, err := o.positionsInput(ctx, vt, viewID, accounts, asOf)
	if err != nil {
		return nil, err
	}
	retInput, err := o.returnsInput(ctx, vt, viewID, posInput.Hash(), tickers)
	if err != nil {
		return nil, err
	}
	lastReturn, err := o.lastReturnDate(ctx, vt, viewID)
	if err != nil {
		return nil, err
	}
	benchInput, err := o.benchmarkInput(ctx, vt, viewID, retInput.Hash(), asOf)
	if err != nil {
		return nil, err
	}
	factorInput, err := o.factorInput(ctx, vt, viewID, retInput.Hash(), asOf)
	if err != nil {
		return nil, err
	}
	riskInput := ledger.RiskInput{
		ViewType: vt, ViewID: viewID,
		ReturnsHash: retInput.Hash(), LastReturnDate: lastReturn,
		WindowDays: o.cfg.RiskWindowDays,
	}

	hashes := map[contracts.ComputationType]string{
		contracts.ComputationPositions:  posInput.Hash(),
		contracts.ComputationReturns:    retInput.Hash(),
		contracts.ComputationRisk:       riskInput.Hash(),
		contracts.ComputationBenchmarks: benchInput.Hash(),
		contracts.ComputationFactors:    factorInput.Hash(),
	}
	return o.ledger.Status(ctx, vt, viewID, hashes)
}

// runUnit gates one computation unit through the ledger and the unit
// lock, records the outcome, and files it into the result.
func (o *Orchestrator) runUnit(ctx context.Context, result *ViewResult, input ledger.HashableInput, vt contracts.ViewType, viewID string, fn func(context.Context) error) {
	ct := input.ComputationType()
	hash := input.Hash()

	should, err := o.ledger.ShouldRecompute(ctx, ct, vt, viewID, hash)
	if err != nil {
		result.Outcomes[ct] = OutcomeFailed
		result.Errors[ct] = err.Error()
		return
	}
	if !should {
		result.Outcomes[ct] = OutcomeSkipped
		return
	}

	if !o.locks.TryAcquire(ct, vt, viewID) {
		result.Outcomes[ct] = OutcomeBusy
		return
	}
	defer o.locks.Release(ct, vt, viewID)

	if err := o.ledger.MarkRunning(ctx, ct, vt, viewID, hash); err != nil {
		result.Outcomes[ct] = OutcomeFailed
		result.Errors[ct] = err.Error()
		return
	}

	start := time.Now()
	runErr := fn(ctx)
	status := contracts.StatusCompleted
	if runErr != nil {
		status = contracts.StatusFailed
	}

	if err := o.ledger.RecordResult(ctx, ct, vt, viewID, hash, "", status, time.Since(start), runErr); err != nil {
		result.Outcomes[ct] = OutcomeFailed
		result.Errors[ct] = err.Error()
		return
	}

	if runErr != nil {
		result.Outcomes[ct] = OutcomeFailed
		result.Errors[ct] = runErr.Error()
		o.logger.WithError(runErr).WithFields(map[string]interface{}{
			"computation": string(ct),
			"view":        fmt.Sprintf("%s/%s", vt, viewID),
		}).Error("Computation unit failed")
		return
	}
	result.Outcomes[ct] = OutcomeUpdated
}

func failedOrBusy(result *ViewResult, ct contracts.ComputationType) bool {
	out := result.Outcomes[ct]
	return out == OutcomeFailed || out == OutcomeBusy
}

// heldTickers aggregates the distinct tickers held across accounts at
// start of day
func (o *Orchestrator) heldTickers(ctx context.Context, accounts []string, asOf time.Time) ([]string, error) {
	set := make(map[string]bool)
	for _, acct := range accounts {
		held, err := o.positions.GetPositionsAsOf(ctx, acct, asOf)
		if err != nil {
			return nil, fmt.Errorf("positions for %s: %w", acct, err)
		}
		for ticker := range held {
			set[ticker] = true
		}
	}
	tickers := make([]string, 0, len(set))
	for t := range set {
		tickers = append(tickers, t)
	}
	return tickers, nil
}

func (o *Orchestrator) positionsInput(ctx context.Context, vt contracts.ViewType, viewID string, accounts []string, asOf time.Time) (ledger.PositionsInput, error) {
	var txnIDs []string
	for _, acct := range accounts {
		ids, err := o.positions.TransactionIDsThrough(ctx, acct, asOf)
		if err != nil {
			return ledger.PositionsInput{}, fmt.Errorf("transactions for %s: %w", acct, err)
		}
		txnIDs = append(txnIDs, ids...)
	}
	// The id set alone identifies the snapshot inputs; stamping asOf into
	// the hash would force a pointless daily recompute.
	return ledger.PositionsInput{
		ViewType: vt, ViewID: viewID,
		TransactionIDs: txnIDs,
	}, nil
}

func (o *Orchestrator) returnsInput(ctx context.Context, vt contracts.ViewType, viewID, positionsHash string, tickers []string) (ledger.ReturnsInput, error) {
	lastDates := make(map[string]time.Time, len(tickers))
	for _, ticker := range tickers {
		d, err := o.prices.LastPriceDate(ctx, ticker)
		if err != nil {
			return ledger.ReturnsInput{}, fmt.Errorf("last price date for %s: %w", ticker, err)
		}
		lastDates[ticker] = d
	}
	return ledger.ReturnsInput{
		ViewType: vt, ViewID: viewID,
		PositionsHash: positionsHash, PriceLastDates: lastDates,
	}, nil
}

func (o *Orchestrator) benchmarkInput(ctx context.Context, vt contracts.ViewType, viewID, returnsHash string, asOf time.Time) (ledger.BenchmarkInput, error) {
	lastDates := make(map[string]time.Time, len(o.cfg.BenchmarkCodes))
	for _, code := range o.cfg.BenchmarkCodes {
		d, err := o.bench.LastReturnDate(ctx, code)
		if err != nil {
			return ledger.BenchmarkInput{}, fmt.Errorf("last benchmark date for %s: %w", code, err)
		}
		lastDates[code] = d
	}
	return ledger.BenchmarkInput{
		ViewType: vt, ViewID: viewID,
		ReturnsHash: returnsHash, BenchmarkLastDates: lastDates,
		WindowDays: o.cfg.BenchmarkWindowDays,
	}, nil
}

func (o *Orchestrator) factorInput(ctx context.Context, vt contracts.ViewType, viewID, returnsHash string, asOf time.Time) (ledger.FactorInput, error) {
	codes, err := o.factors.ListFactorCodes(ctx)
	if err != nil {
		return ledger.FactorInput{}, fmt.Errorf("list factor codes: %w", err)
	}

	rng := contracts.DateRange{From: asOf.AddDate(0, 0, -o.cfg.BenchmarkWindowDays), To: asOf}
	lastDates := make(map[string]time.Time, len(codes))
	for _, code := range codes {
		series, err := o.factors.GetFactorReturns(ctx, code, rng)
		if err != nil {
			return ledger.FactorInput{}, fmt.Errorf("factor series %s: %w", code, err)
		}
		var last time.Time
		if len(series) > 0 {
			last = series[len(series)-1].Date
		}
		lastDates[code] = last
	}
	return ledger.FactorInput{
		ViewType: vt, ViewID: viewID,
		ReturnsHash: returnsHash, FactorLastDates: lastDates,
		WindowDays: o.cfg.BenchmarkWindowDays,
	}, nil
}

func (o *Orchestrator) lastReturnDate(ctx context.Context, vt contracts.ViewType, viewID string) (time.Time, error) {
	trailing, err := o.returns.GetTrailing(ctx, vt, viewID, 1)
	if err != nil {
		return time.Time{}, fmt.Errorf("last return date for %s/%s: %w", vt, viewID, err)
	}
	if len(trailing) == 0 {
		return time.Time{}, nil
	}
	return trailing[len(trailing)-1].Date, nil
}
