package commands

import (
	"fmt"

	"github.com/openfolio/backend/internal/baskets"
	"github.com/openfolio/backend/internal/benchmarks"
	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/internal/coverage"
	"github.com/openfolio/backend/internal/external/marketwatch"
	"github.com/openfolio/backend/internal/external/stooq"
	"github.com/openfolio/backend/internal/external/tiingo"
	"github.com/openfolio/backend/internal/factors"
	"github.com/openfolio/backend/internal/ledger"
	"github.com/openfolio/backend/internal/marketdata"
	"github.com/openfolio/backend/internal/orchestrator"
	"github.com/openfolio/backend/internal/positions"
	"github.com/openfolio/backend/internal/returns"
	"github.com/openfolio/backend/internal/risk"
	"github.com/openfolio/backend/internal/updatestate"
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/database"
	"github.com/openfolio/backend/pkg/httputil"
	"github.com/openfolio/backend/pkg/logger"
	"github.com/openfolio/backend/pkg/redis"
)

// app wires the full dependency graph once per command invocation
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	marketData *marketdata.Service
	syncer     *marketdata.BenchmarkSyncer
	orch       *orchestrator.Orchestrator

	priceRepo  *marketdata.Repository
	returnRepo *returns.Repository
	riskRepo   *risk.Repository
	benchRepo  *benchmarks.Repository
	factorRepo *factors.Repository
	basketRepo *baskets.Repository
	basketEng  *baskets.Engine
}

// newApp loads config and builds every component the commands share
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Redis is advisory: caching and distributed rate limiting degrade
	// gracefully when it is down.
	var redisClient *redis.Client
	var cache *redis.Cache
	var limiter *redis.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without cache")
		} else {
			cache = redis.NewCache(redisClient, "folio")
			limiter = redis.NewRateLimiter(redisClient, "folio")
		}
	}

	// One HTTP client per provider so each keeps its own rate budget
	tiingoHTTP := httputil.New(cfg, log).WithRateLimiter(limiter, redis.TiingoRateLimit)
	stooqHTTP := httputil.New(cfg, log).WithRateLimiter(limiter, redis.StooqRateLimit)
	mwHTTP := httputil.New(cfg, log).WithRateLimiter(limiter, redis.MarketWatchRateLimit)

	providers := []contracts.PriceProvider{
		tiingo.NewClient(cfg, tiingoHTTP, log),
		stooq.NewClient(cfg, stooqHTTP, log),
		marketwatch.NewClient(cfg, mwHTTP, log),
	}

	covTracker := coverage.NewTracker(coverage.NewRepository(db.Pool), cfg.Analytics.ProviderFailureThreshold, log)
	stateTracker := updatestate.NewTracker(updatestate.NewRepository(db.Pool), log)
	priceRepo := marketdata.NewRepository(db.Pool)

	svc := marketdata.NewService(
		providers,
		cfg.Analytics.ProviderPriority,
		covTracker,
		stateTracker,
		priceRepo,
		cache,
		log,
	)

	benchRepo := benchmarks.NewRepository(db.Pool)
	syncer := marketdata.NewBenchmarkSyncer(svc, benchRepo)

	posRepo := positions.NewRepository(db.Pool)
	returnRepo := returns.NewRepository(db.Pool)
	riskRepo := risk.NewRepository(db.Pool)
	factorRepo := factors.NewRepository(db.Pool)
	basketRepo := baskets.NewRepository(db.Pool)

	returnsEng := returns.NewEngine(posRepo, posRepo, priceRepo, returnRepo, log)
	riskEng := risk.NewEngine(returnRepo, riskRepo, cfg.Analytics.RiskWindowDays, log)
	benchEng := benchmarks.NewEngine(returnRepo, benchRepo, cfg.Analytics.BenchmarkCodes,
		cfg.Analytics.BenchmarkWindowDays, cfg.Analytics.MinRegressionObs, log)
	factorsEng := factors.NewEngine(returnRepo, factorRepo,
		cfg.Analytics.BenchmarkWindowDays, cfg.Analytics.MinRegressionObs, log)
	basketEng := baskets.NewEngine(priceRepo, basketRepo, benchRepo, log)

	led := ledger.New(ledger.NewRepository(db.Pool), log)

	orch := orchestrator.New(
		posRepo, posRepo, priceRepo, returnRepo, benchRepo, factorRepo,
		svc, returnsEng, riskEng, benchEng, factorsEng,
		led,
		orchestrator.Config{
			RiskWindowDays:      cfg.Analytics.RiskWindowDays,
			BenchmarkWindowDays: cfg.Analytics.BenchmarkWindowDays,
			ReturnsLookbackDays: cfg.Analytics.ReturnsLookbackDays,
			BenchmarkCodes:      cfg.Analytics.BenchmarkCodes,
			MaxConcurrentViews:  cfg.Analytics.MaxConcurrentViews,
		},
		log,
	)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		redis:      redisClient,
		marketData: svc,
		syncer:     syncer,
		orch:       orch,
		priceRepo:  priceRepo,
		returnRepo: returnRepo,
		riskRepo:   riskRepo,
		benchRepo:  benchRepo,
		factorRepo: factorRepo,
		basketRepo: basketRepo,
		basketEng:  basketEng,
	}, nil
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}
