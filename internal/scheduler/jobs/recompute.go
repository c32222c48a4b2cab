package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/orchestrator"
	"github.com/openfolio/backend/pkg/logger"
)

// RecomputeJob runs the full analytics pipeline for every active account
// after the nightly data sync. Views whose inputs did not change are
// skipped by the ledger, so the steady-state pass is cheap.
type RecomputeJob struct {
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewRecomputeJob creates a nightly recompute job
func NewRecomputeJob(orch *orchestrator.Orchestrator, log *logger.Logger) *RecomputeJob {
	return &RecomputeJob{orch: orch, logger: log}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return "nightly_recompute"
}

// Schedule returns the cron schedule (11 PM on weekdays, after the
// benchmark sync)
func (j *RecomputeJob) Schedule() string {
	return "0 0 23 * * 1-5"
}

// Run recomputes analytics for every account with holdings
func (j *RecomputeJob) Run(ctx context.Context) error {
	j.logger.Info("Starting nightly recompute")
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	views, err := j.orch.AccountViews(ctx, asOf)
	if err != nil {
		return fmt.Errorf("list views: %w", err)
	}
	if len(views) == 0 {
		j.logger.Info("No active accounts, nothing to recompute")
		return nil
	}

	batch, err := j.orch.RecomputeBatch(ctx, views, asOf)
	if err != nil {
		return fmt.Errorf("recompute batch: %w", err)
	}

	if batch.Failed > 0 {
		return fmt.Errorf("nightly recompute finished with %d failed of %d views", batch.Failed, len(views))
	}
	return nil
}
