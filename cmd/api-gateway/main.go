package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ace-lms-api/api/swagger"
	"github.com/noah-isme/ace-lms-api/internal/handler"
	"github.com/noah-isme/ace-lms-api/internal/middleware"
	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/repository"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/cache"
	"github.com/noah-isme/ace-lms-api/pkg/config"
	"github.com/noah-isme/ace-lms-api/pkg/jobs"
	"github.com/noah-isme/ace-lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ace-lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ace-lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/ace-lms-api/pkg/storage"
)

// @title ACE LMS API
// @version 1.0.0
// @description Learning management API: course catalog, MVK requirements, users, gamification and reports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, err := openBackend(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open data store", zap.Error(err))
	}
	defer data.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc, closeCache := newCacheService(ctx, cfg, metrics, logr)
	defer closeCache() //nolint:errcheck

	catalog, err := service.NewCatalog(cfg.Filter.StrictKeys)
	if err != nil {
		logr.Fatal("failed to build filter catalog", zap.Error(err))
	}
	catalog.WithObserver(metrics)

	authSvc := service.NewAuthService(data.users, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ace-lms-api",
		LockoutWindow:      cfg.Auth.LockoutWindow,
	}).WithSecurityPolicy(data.settings)
	userSvc := service.NewUserService(data.users, cacheSvc, catalog, nil, logr)
	courseSvc := service.NewCourseService(data.courses, data.users, cacheSvc, catalog, nil, logr)
	requirementSvc := service.NewRequirementService(data.requirements, cacheSvc, catalog, nil, logr)
	gamificationSvc := service.NewGamificationService(data.gamification, data.users, cacheSvc, catalog, nil, logr,
		service.GamificationConfig{LevelStep: cfg.Gamification.LevelStep})
	settingsSvc := service.NewSettingsService(data.settings, data.users, nil, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:        userSvc,
		Courses:      courseSvc,
		Requirements: requirementSvc,
		Gamification: gamificationSvc,
		Cache:        cacheSvc,
		Logger:       logr,
		Config:       service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Courses:      handler.NewCourseHandler(courseSvc),
		Requirements: handler.NewRequirementHandler(requirementSvc),
		Users:        handler.NewUserHandler(userSvc),
		Gamification: handler.NewGamificationHandler(gamificationSvc),
		Settings:     handler.NewSettingsHandler(settingsSvc),
		Dashboard:    handler.NewDashboardHandler(dashboardSvc),
		Metrics:      handler.NewMetricsHandler(metrics),
	}

	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		reportSvc, q, err := startReports(ctx, cfg, data, catalog, metrics, logr)
		if err != nil {
			logr.Fatal("failed to start report workers", zap.Error(err))
		}
		queue = q
		handlers.Reports = handler.NewReportHandler(reportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", handlers.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if data.db != nil {
			if err := data.db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		body := gin.H{"status": "ready", "store": cfg.Store.Driver}
		if queue != nil {
			body["report_queue"] = queue.Stats()
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", handlers.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handlers, handler.RouteDeps{
		Auth:   middleware.JWT(authSvc),
		Audit:  data.users,
		Logger: logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

// newCacheService falls back to a disabled cache when redis is off or unreachable. The
// returned close func releases the redis connection.
func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func() error) {
	disabled := func() (*service.CacheService, func() error) {
		return service.NewCacheService(nil, metrics, cfg.Cache.SummaryTTL, logr, false), func() error { return nil }
	}
	if !cfg.Cache.Enabled {
		return disabled()
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		return disabled()
	}
	repo := repository.NewCacheRepository(client, logr)
	logr.Sugar().Infow("summary cache enabled", "redis", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
	return service.NewCacheService(repo, metrics, cfg.Cache.SummaryTTL, logr, true), repo.Close
}

func startReports(ctx context.Context, cfg *config.Config, data *backend, catalog *service.Catalog, metrics *service.MetricsService, logr *zap.Logger) (*service.ReportService, *jobs.Queue, error) {
	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	resultTTL := cfg.Reports.SignedURLTTL
	exporter := service.NewExportService(
		service.ReportSources{Users: data.users, Courses: data.courses, Requirements: data.requirements},
		files,
		storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, resultTTL),
		catalog,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: resultTTL},
		logr,
	)
	worker := service.NewReportWorker(data.reports, exporter, cfg.Reports.WorkerRetries, logr).WithObserver(metrics)

	queue := jobs.NewQueue("reports", jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		OnFailure:  worker.Fail,
		Logger:     logr,
	})
	for _, info := range models.ReportCatalogue {
		queue.Register(string(info.Type), worker.Handle)
	}
	queue.Start(ctx)

	svc := service.NewReportService(data.reports, queue, exporter, data.users, nil, logr, service.ReportServiceConfig{
		ResultTTL:       resultTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	svc.RecoverPendingJobs(ctx)
	svc.StartCleanup(ctx)
	return svc, queue, nil
}
