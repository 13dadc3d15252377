package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emeeran/phrm-diag-sub000/internal/alerts"
	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/internal/azure"
	"github.com/emeeran/phrm-diag-sub000/internal/config"
	"github.com/emeeran/phrm-diag-sub000/internal/handler"
	"github.com/emeeran/phrm-diag-sub000/internal/knowledge"
	"github.com/emeeran/phrm-diag-sub000/internal/metrics"
	"github.com/emeeran/phrm-diag-sub000/internal/middleware"
	"github.com/emeeran/phrm-diag-sub000/internal/repository"
	"github.com/emeeran/phrm-diag-sub000/internal/service"
)

// stores groups the persistence ports the services depend on
type stores struct {
	records  service.RecordRepositoryInterface
	analyses service.AnalysisRepositoryInterface
	alerts   service.AlertRepositoryInterface
	insights service.InsightRepositoryInterface
	auditDB  audit.Execer
	pinger   handler.Pinger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()
	m := metrics.New(prometheus.DefaultRegisterer)

	st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer st.close()

	// External knowledge and generation port
	var (
		lookup    analytics.InteractionLookup
		generator service.Generator
	)
	if cfg.Azure.OpenAI.Enabled() {
		openAIClient, err := azure.NewOpenAIClient(
			cfg.Azure.OpenAI.Endpoint,
			cfg.Azure.OpenAI.APIKey,
			cfg.Azure.OpenAI.Deployment,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to initialize Azure OpenAI client", zap.Error(err))
		}
		knowledgeClient := knowledge.NewClient(
			openAIClient,
			knowledge.NewLimiter(cfg.Analytics.LookupRate, cfg.Analytics.LookupBurst),
			m,
			logger,
		)
		generator = knowledgeClient
		if cfg.Analytics.LookupEnabled {
			lookup = knowledgeClient
		}
	} else {
		logger.Warn("Azure OpenAI is not configured; interaction lookups and generated content are disabled")
	}

	auditLogger := audit.NewLogger(st.auditDB, logger)

	// Services
	analysisService := service.NewAnalysisService(
		st.records,
		st.analyses,
		analytics.NewMedicationAnalyzer(lookup, cfg.Analytics.InteractionPolicy(), cfg.Analytics.LookupConcurrency, logger),
		auditLogger,
		m,
		service.AnalysisConfig{DedupWindow: cfg.Analytics.DedupWindow},
		logger,
	)

	generationPolicy := cfg.Analytics.GenerationPolicy()
	var alertGenerator alerts.Generator
	if generator != nil {
		alertGenerator = generator
	}
	alertService := service.NewAlertService(
		st.records,
		st.alerts,
		service.Detectors{
			Anomaly:    alerts.NewAnomalyDetector(cfg.Alerts.RecurringWindow, logger),
			Refill:     alerts.NewRefillDetector(cfg.Alerts.DefaultSupplyDays, cfg.Alerts.RefillLeadTime, cfg.Alerts.RefillGrace, logger),
			Milestones: alerts.NewMilestoneDetector(alertGenerator, generationPolicy, logger),
			Wellness:   alerts.NewWellnessPlanner(alertGenerator, generationPolicy, logger),
		},
		auditLogger,
		m,
		service.AlertConfig{
			AnomalyTTL:   cfg.Alerts.AnomalyTTL,
			MilestoneTTL: cfg.Alerts.MilestoneTTL,
			WellnessTTL:  cfg.Alerts.WellnessTTL,
		},
		logger,
	)

	insightService := service.NewInsightService(
		st.records,
		st.insights,
		generator,
		generationPolicy,
		auditLogger,
		service.InsightConfig{Validity: cfg.Insights.Validity},
		logger,
	)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Recovery must be first
	r.Use(middleware.RecoveryMiddleware(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware(m))
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	handler.NewHandler(analysisService, alertService, insightService, st.pinger, logger).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Let in-flight audit writes finish before the pool closes
	auditLogger.Wait()

	logger.Info("server exited")
}

// newLogger builds the zap logger for the configured environment, level and format
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Server.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Logging.Format

	return zapCfg.Build()
}

// openStores connects to Postgres when a URL is configured and falls back to
// the in-memory store otherwise
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*stores, error) {
	if cfg.URL == "" {
		logger.Warn("no database configured, using the in-memory store")
		store := repository.NewMemoryStore()
		return &stores{
			records:  store,
			analyses: store,
			alerts:   store,
			insights: store,
			close:    func() {},
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("successfully connected to database")

	if cfg.RunMigrations {
		if err := repository.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &stores{
		records:  repository.NewRecordRepository(pool, logger),
		analyses: repository.NewAnalysisRepository(pool, logger),
		alerts:   repository.NewAlertRepository(pool, logger),
		insights: repository.NewInsightRepository(pool, logger),
		auditDB:  pool,
		pinger:   pool,
		close:    pool.Close,
	}, nil
}
