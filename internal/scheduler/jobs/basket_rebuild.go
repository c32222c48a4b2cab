package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/baskets"
	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// basketRebuildDays is how much of each synthetic series is rebuilt
// nightly. Rebuilding the full regression window tolerates late price
// corrections in any constituent.
const basketRebuildDays = 400

// BasketRebuildJob regenerates every basket's synthetic benchmark
// series from the latest stored constituent prices
type BasketRebuildJob struct {
	engine *baskets.Engine
	repo   contracts.BasketRepository
	logger *logger.Logger
}

// NewBasketRebuildJob creates a basket rebuild job
func NewBasketRebuildJob(engine *baskets.Engine, repo contracts.BasketRepository, log *logger.Logger) *BasketRebuildJob {
	return &BasketRebuildJob{engine: engine, repo: repo, logger: log}
}

// Name returns the job name
func (j *BasketRebuildJob) Name() string {
	return "basket_rebuild"
}

// Schedule returns the cron schedule (10:30 PM on weekdays, between the
// benchmark sync and the recompute pass)
func (j *BasketRebuildJob) Schedule() string {
	return "0 30 22 * * 1-5"
}

// Run rebuilds every stored basket series
func (j *BasketRebuildJob) Run(ctx context.Context) error {
	defs, err := j.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list baskets: %w", err)
	}
	if len(defs) == 0 {
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	rng := contracts.DateRange{From: today.AddDate(0, 0, -basketRebuildDays), To: today}

	var firstErr error
	for _, def := range defs {
		if err := j.engine.Rebuild(ctx, def.Code, rng); err != nil {
			j.logger.WithError(err).WithField("code", def.Code).Error("Basket rebuild failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("rebuild basket %s: %w", def.Code, err)
			}
		}
	}
	return firstErr
}
