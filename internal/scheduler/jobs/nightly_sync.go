package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/marketdata"
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/logger"
)

// NightlySyncJob brings benchmark and factor series up to date after the
// market close. Security prices are refreshed lazily by the orchestrator
// per view; the shared series every view compares against are refreshed
// here once.
type NightlySyncJob struct {
	syncer *marketdata.BenchmarkSyncer
	config *config.Config
	logger *logger.Logger
}

// NewNightlySyncJob creates a nightly benchmark sync job
func NewNightlySyncJob(syncer *marketdata.BenchmarkSyncer, cfg *config.Config, log *logger.Logger) *NightlySyncJob {
	return &NightlySyncJob{
		syncer: syncer,
		config: cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *NightlySyncJob) Name() string {
	return "nightly_benchmark_sync"
}

// Schedule returns the cron schedule (10 PM on weekdays)
func (j *NightlySyncJob) Schedule() string {
	return "0 0 22 * * 1-5"
}

// Run syncs every configured benchmark code. One failing code does not
// stop the rest; the first error is reported after all codes ran.
func (j *NightlySyncJob) Run(ctx context.Context) error {
	j.logger.Info("Starting nightly benchmark sync")
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var firstErr error
	for _, code := range j.config.Analytics.BenchmarkCodes {
		if err := j.syncer.Sync(ctx, code, today); err != nil {
			j.logger.WithError(err).WithField("code", code).Error("Benchmark sync failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("sync benchmark %s: %w", code, err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	j.logger.Info("Nightly benchmark sync completed")
	return nil
}
