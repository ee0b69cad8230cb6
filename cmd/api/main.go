package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	attrHttp "attribution-engine/internal/attribution/adapters/http/fiber"
	attrMemory "attribution-engine/internal/attribution/adapters/memory"
	attrUsecase "attribution-engine/internal/attribution/core/usecase"

	campaignsPg "attribution-engine/internal/campaigns/adapters/postgres"
	campaignsUsecase "attribution-engine/internal/campaigns/core/usecase"

	reportingHttp "attribution-engine/internal/reporting/adapters/http/fiber"
	reportingPg "attribution-engine/internal/reporting/adapters/postgres"
	reportingUsecase "attribution-engine/internal/reporting/core/usecase"

	"attribution-engine/internal/config"
	"attribution-engine/internal/observability"
	"attribution-engine/internal/platform/logger"
	"attribution-engine/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	fiberSwagger "github.com/swaggo/fiber-swagger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.AppMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	// DB connection
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		logg.Fatal("failed to open postgres", "err", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		logg.Fatal("failed to ping postgres", "err", err)
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	// Campaign config cache
	campaignRepo := campaignsPg.NewCampaignRepository(campaignsPg.NewSQLDB(db))
	cache := campaignsUsecase.NewConfigCache(campaignRepo, campaignsUsecase.ConfigCacheOptions{
		TTL:          cfg.CacheTTL,
		RefreshEvery: cfg.CacheRefreshEvery,
		Retention:    cfg.CampaignRetention,
	}, logg)
	if err := cache.Refresh(context.Background()); err != nil {
		logg.Warn("initial campaign refresh failed, matching starts cold", "err", err)
	}
	cache.Start()
	defer cache.Stop()

	// Attribution pipeline
	touchIndex := attrMemory.NewTouchIndex(cfg.Lookback)
	conversionRepo := attrMemory.NewConversionRepository()

	matchUC := attrUsecase.NewMatchEventUseCase(cache, touchIndex, attrUsecase.MatcherConfig{
		PromoConfidence:    cfg.PromoConfidence,
		PromoGrace:         cfg.PromoGrace,
		PixelMaxConfidence: cfg.PixelMaxConfidence,
		PixelMinConfidence: cfg.PixelMinConfidence,
		UTMConfidence:      cfg.UTMConfidence,
		DirectConfidence:   cfg.DirectConfidence,
		Lookback:           cfg.Lookback,
	}, logg)

	resolveUC := attrUsecase.NewResolveConversionUseCase(conversionRepo, attrUsecase.ResolverConfig{
		DedupWindow:      cfg.DedupWindow,
		RecomputeHorizon: cfg.RecomputeHorizon,
		IdentityBucket:   time.Minute,
	}, logg, metrics)

	model, err := attrUsecase.ParseModel(cfg.AttributionModel)
	if err != nil {
		logg.Fatal("attribution model", "err", err)
	}
	allocateUC, err := attrUsecase.NewAllocateCreditUseCase(attrUsecase.AllocatorConfig{
		Model:    model,
		HalfLife: cfg.DecayHalfLife,
	})
	if err != nil {
		logg.Fatal("allocator", "err", err)
	}

	// Aggregation engine
	aggregateRepo := reportingPg.NewAggregateRepository(reportingPg.NewSQLDB(db))
	deadLetterRepo := reportingPg.NewDeadLetterRepository(reportingPg.NewSQLDB(db))
	applyUC := reportingUsecase.NewApplyResultUseCase(
		aggregateRepo,
		deadLetterRepo,
		utils.NewBackoff(cfg.RetryBase, cfg.RetryMaxRetries),
		logg,
		metrics,
	)

	normalizeUC := attrUsecase.NewNormalizeEventUseCase(metrics)
	processUC := attrUsecase.NewProcessEventUseCase(matchUC, resolveUC, allocateUC, applyUC, conversionRepo, logg, metrics)

	pipeline := attrUsecase.NewPipeline(processUC, attrUsecase.PipelineConfig{
		Shards:         cfg.Shards,
		QueueSize:      cfg.QueueSize,
		SweepEvery:     cfg.SweepEvery,
		IdentityBucket: time.Minute,
		OpTimeout:      10 * time.Second,
	}, logg, metrics)
	pipeline.Start()

	reportUC := reportingUsecase.NewGetReportUseCase(aggregateRepo, cache)

	// HTTP (Fiber) app + handlers
	app := fiber.New()

	eventsHandler := attrHttp.NewEventHandler(normalizeUC, pipeline)
	app.Post("/events", eventsHandler.IngestEvent)
	app.Post("/events/bulk", eventsHandler.BulkIngestEvents)

	reportHandler := reportingHttp.NewReportHandler(reportUC)
	app.Get("/reports/campaigns/:campaign_id", reportHandler.GetCampaignReport)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/docs/*", fiberSwagger.WrapHandler)

	go func() {
		if err := app.Listen(cfg.HTTPPort); err != nil {
			logg.Error("fiber stopped", "err", err)
		}
	}()

	logg.Info("attribution engine started", "addr", cfg.HTTPPort, "model", string(model))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logg.Error("fiber shutdown error", "err", err)
	}

	// drain queued events and flush open conversions before exit
	pipeline.Shutdown()

	logg.Info("server exiting")
}
