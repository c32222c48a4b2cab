package updatestate

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// Tracker keeps per-entity last-known-date state and derives the date
// range a fetch still needs to cover. Gap detection is a policy supplied
// by callers; the tracker only records the flag and range.
type Tracker struct {
	repo   contracts.UpdateStateRepository
	logger *logger.Logger
}

// NewTracker creates an update-state tracker
func NewTracker(repo contracts.UpdateStateRepository, log *logger.Logger) *Tracker {
	return &Tracker{repo: repo, logger: log}
}

// FetchRange returns the missing date range for an entity:
// [lastUpdateDate+1, today] normally, [backfillStart, today] when a
// backfill is pending, and a full-history range when nothing is known.
func (t *Tracker) FetchRange(ctx context.Context, entityType contracts.EntityType, entityID string, today time.Time) (contracts.DateRange, error) {
	state, err := t.repo.Get(ctx, entityType, entityID)
	if err != nil {
		return contracts.DateRange{}, fmt.Errorf("load update state: %w", err)
	}

	today = truncateDay(today)

	if state == nil {
		// Nothing fetched yet: full default history
		return contracts.DateRange{
			From: today.AddDate(-5, 0, 0),
			To:   today,
		}, nil
	}

	if state.NeedsBackfill && !state.BackfillStart.IsZero() {
		return contracts.DateRange{
			From: truncateDay(state.BackfillStart),
			To:   today,
		}, nil
	}

	from := truncateDay(state.LastUpdateDate).AddDate(0, 0, 1)
	if from.After(today) {
		// Already current; empty range
		return contracts.DateRange{}, nil
	}
	return contracts.DateRange{From: from, To: today}, nil
}

// MarkUpdated advances last_update_date monotonically after a successful
// fetch; it never regresses the date. The backfill flag clears only once
// the fetch covers the whole gap, from backfill_start up to where
// continuous coverage already resumed; a partial fetch into the gap
// leaves it set.
func (t *Tracker) MarkUpdated(ctx context.Context, entityType contracts.EntityType, entityID string, throughDate time.Time, provider string) error {
	state, err := t.repo.Get(ctx, entityType, entityID)
	if err != nil {
		return fmt.Errorf("load update state: %w", err)
	}

	throughDate = truncateDay(throughDate)
	now := time.Now()

	if state == nil {
		state = &contracts.UpdateState{
			EntityType: entityType,
			EntityID:   entityID,
		}
	}

	gapEnd := truncateDay(state.LastUpdateDate)

	if throughDate.After(state.LastUpdateDate) {
		state.LastUpdateDate = throughDate
	}
	state.LastUpdateTime = now
	if provider != "" {
		state.PreferredProvider = provider
	}

	if state.NeedsBackfill &&
		!throughDate.Before(truncateDay(state.BackfillStart)) &&
		!throughDate.Before(gapEnd) {
		state.NeedsBackfill = false
		state.BackfillStart = time.Time{}
	}

	if err := t.repo.Upsert(ctx, state); err != nil {
		return fmt.Errorf("save update state: %w", err)
	}
	return nil
}

// FlagBackfill records a detected gap starting at from. The earliest
// outstanding gap wins when one is already flagged.
func (t *Tracker) FlagBackfill(ctx context.Context, entityType contracts.EntityType, entityID string, from time.Time) error {
	state, err := t.repo.Get(ctx, entityType, entityID)
	if err != nil {
		return fmt.Errorf("load update state: %w", err)
	}

	from = truncateDay(from)
	if state == nil {
		state = &contracts.UpdateState{
			EntityType: entityType,
			EntityID:   entityID,
		}
	}

	if !state.NeedsBackfill || from.Before(state.BackfillStart) {
		state.NeedsBackfill = true
		state.BackfillStart = from
	}

	if err := t.repo.Upsert(ctx, state); err != nil {
		return fmt.Errorf("save update state: %w", err)
	}

	t.logger.WithFields(map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   entityID,
		"from":        from.Format("2006-01-02"),
	}).Info("Backfill flagged")
	return nil
}

// Get returns the raw state for status reporting
func (t *Tracker) Get(ctx context.Context, entityType contracts.EntityType, entityID string) (*contracts.UpdateState, error) {
	return t.repo.Get(ctx, entityType, entityID)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
