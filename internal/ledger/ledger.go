package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// Ledger decides whether a computation unit needs to run and records
// outcomes. It owns all staleness decisions; engines never consult
// hashes directly.
type Ledger struct {
	repo   contracts.LedgerRepository
	logger *logger.Logger
}

// New creates a dependency ledger
func New(repo contracts.LedgerRepository, log *logger.Logger) *Ledger {
	return &Ledger{repo: repo, logger: log}
}

// ShouldRecompute reports whether the unit identified by (ct, vt, viewID)
// must run given the current input hash. Recomputation is forced when no
// record exists, the last run failed, or the stored hash differs. An
// unchanged hash on a completed record is always safe to skip; the
// record's status transitions to skipped with last_computed untouched.
func (l *Ledger) ShouldRecompute(ctx context.Context, ct contracts.ComputationType, vt contracts.ViewType, viewID, currentInputHash string) (bool, error) {
	rec, err := l.repo.Get(ctx, ct, vt, viewID)
	if err != nil {
		return false, fmt.Errorf("load computation record: %w", err)
	}

	if rec == nil {
		return true, nil
	}
	if rec.Status == contracts.StatusFailed {
		// Failed runs retry regardless of hash match
		return true, nil
	}
	if rec.InputHash != currentInputHash {
		return true, nil
	}

	// Inputs unchanged: mark skipped, keep last_computed
	if rec.Status != contracts.StatusSkipped {
		rec.Status = contracts.StatusSkipped
		if err := l.repo.Upsert(ctx, rec); err != nil {
			return false, fmt.Errorf("mark skipped: %w", err)
		}
	}

	l.logger.WithFields(map[string]interface{}{
		"computation": ct,
		"view":        fmt.Sprintf("%s/%s", vt, viewID),
	}).Debug("Computation inputs unchanged, skipping")
	return false, nil
}

// MarkRunning upserts a running record before work starts so operators
// can see in-flight units. The input hash is stored up front so a crash
// mid-run leaves a non-completed record that forces a retry.
func (l *Ledger) MarkRunning(ctx context.Context, ct contracts.ComputationType, vt contracts.ViewType, viewID, inputHash string) error {
	rec := &contracts.ComputationRecord{
		ComputationType: ct,
		ViewType:        vt,
		ViewID:          viewID,
		InputHash:       inputHash,
		Status:          contracts.StatusRunning,
	}
	if err := l.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

// RecordResult upserts the outcome of a computation unit. The write is
// atomic on the unique (type, view) key; writes are idempotent for a
// given input hash, so last-writer-wins is acceptable under races.
func (l *Ledger) RecordResult(ctx context.Context, ct contracts.ComputationType, vt contracts.ViewType, viewID, inputHash, outputHash string, status contracts.ComputationStatus, duration time.Duration, runErr error) error {
	rec := &contracts.ComputationRecord{
		ComputationType: ct,
		ViewType:        vt,
		ViewID:          viewID,
		InputHash:       inputHash,
		OutputHash:      outputHash,
		Status:          status,
		LastComputed:    time.Now(),
		DurationMs:      duration.Milliseconds(),
	}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}

	if err := l.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	l.logger.WithFields(map[string]interface{}{
		"computation": ct,
		"view":        fmt.Sprintf("%s/%s", vt, viewID),
		"status":      status,
		"duration_ms": rec.DurationMs,
	}).Debug("Computation result recorded")
	return nil
}

// ViewStatus reports, per computation type, whether the stored result is
// current against the supplied input hashes (exposed to presentation layers).
type ViewStatus struct {
	ViewType contracts.ViewType           `json:"view_type"`
	ViewID   string                       `json:"view_id"`
	Current  map[contracts.ComputationType]bool `json:"current"`
	Records  []*contracts.ComputationRecord     `json:"records"`
}

// Status returns the ledger's view of one view's computations. A record
// is current when completed/skipped with a matching hash.
func (l *Ledger) Status(ctx context.Context, vt contracts.ViewType, viewID string, currentHashes map[contracts.ComputationType]string) (*ViewStatus, error) {
	records, err := l.repo.ListByView(ctx, vt, viewID)
	if err != nil {
		return nil, fmt.Errorf("list computation records: %w", err)
	}

	status := &ViewStatus{
		ViewType: vt,
		ViewID:   viewID,
		Current:  make(map[contracts.ComputationType]bool),
		Records:  records,
	}
	for _, rec := range records {
		hash, ok := currentHashes[rec.ComputationType]
		current := ok && hash == rec.InputHash &&
			(rec.Status == contracts.StatusCompleted || rec.Status == contracts.StatusSkipped)
		status.Current[rec.ComputationType] = current
	}
	return status, nil
}
