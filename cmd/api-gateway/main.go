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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-portal-api/api/swagger"
	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/observability"
	"github.com/noah-isme/school-portal-api/internal/repository"
	"github.com/noah-isme/school-portal-api/internal/server"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/cache"
	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	"github.com/noah-isme/school-portal-api/pkg/storage"
)

// @title School Portal API
// @version 1.0.0
// @description Gradebook, admissions, attendance, fee ledger and report exports for a school.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var (
		redisClient *redis.Client
		cacheSvc    *service.CacheService
		sessions    service.GradingSessionStore
	)
	redisClient, err = cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-memory grading sessions and no roster cache", zap.Error(err))
		sessions = repository.NewMemorySessionRepository()
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Gradebook.RosterCacheTTL, logr, true)
		sessions = repository.NewSessionRepository(cacheRepo, cfg.Gradebook.SessionTTL)
	}

	rosterRepo := repository.NewRosterRepository(db)
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewConfigurationRepository(db)
	reportRepo := repository.NewReportRepository(db)

	roster := service.NewRosterGateway(rosterRepo, cacheSvc, metrics, cfg.Gradebook.RosterCacheTTL, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		Audience:           cfg.JWT.Audience,
		SingleSession:      cfg.JWT.SingleSession,
	})
	settingsSvc := service.NewSettingsService(settingsRepo, userRepo, validate, logr)
	gradebookSvc := service.NewGradebookService(roster, sessions, settingsSvc, userRepo, metrics, logr, service.GradebookServiceConfig{
		ArchiveSkipEmpty: cfg.Gradebook.ArchiveSkipEmpty,
	})
	importSvc := service.NewImportService(gradebookSvc, userRepo, logr)
	studentSvc := service.NewStudentService(rosterRepo, logr)
	attendanceSvc := service.NewAttendanceService(roster, userRepo, validate, logr)
	feeSvc := service.NewFeeService(roster, userRepo, validate, logr, service.FeeServiceConfig{
		DefaultMonthly: cfg.Fees.DefaultMonthly,
		ClassMonthly:   cfg.Fees.ClassMonthly,
	})
	admissionSvc := service.NewAdmissionService(roster, userRepo, userRepo, validate, logr, service.AdmissionServiceConfig{
		IDPrefix: cfg.Admissions.IDPrefix,
	})

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		reportSvc, err := startReports(ctx, cfg, logr, roster, settingsSvc, reportRepo)
		if err != nil {
			logr.Fatal("report pipeline failed to start", zap.Error(err))
		}
		reportHandler = handler.NewReportHandler(reportSvc, logr)
	}

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := server.NewRouter(server.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         authSvc,
		Audit:          userRepo,
	}, server.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Admissions: handler.NewAdmissionHandler(admissionSvc),
		Students:   handler.NewStudentHandler(studentSvc, attendanceSvc, feeSvc, gradebookSvc),
		Gradebook:  handler.NewGradebookHandler(gradebookSvc, importSvc),
		Reports:    reportHandler,
		Settings:   handler.NewSettingsHandler(settingsSvc),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// startReports wires the export pipeline: storage, renderers, the worker queue and cleanup.
func startReports(ctx context.Context, cfg *config.Config, logr *zap.Logger, roster service.RosterStore, settings *service.SettingsService, repo *repository.ReportRepository) (*service.ReportService, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewDownloadSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(roster, settings, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, service.ExportRenderers{
		CSV:  export.NewCSVExporter(),
		PDF:  export.NewPDFExporter(),
		XLSX: export.NewXLSXExporter(),
	})

	worker := service.NewReportWorker(repo, exporter, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	go func() {
		<-ctx.Done()
		queue.Stop()
	}()

	svc := service.NewReportService(repo, queue, exporter, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	svc.RecoverPendingJobs(ctx)
	svc.StartCleanup(ctx)
	return svc, nil
}
