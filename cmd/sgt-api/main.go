package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/handler"
	"github.com/estudio-sgt/sgt-api/internal/repository"
	"github.com/estudio-sgt/sgt-api/internal/service"
	"github.com/estudio-sgt/sgt-api/pkg/cache"
	"github.com/estudio-sgt/sgt-api/pkg/config"
	"github.com/estudio-sgt/sgt-api/pkg/database"
	"github.com/estudio-sgt/sgt-api/pkg/jobs"
	"github.com/estudio-sgt/sgt-api/pkg/logger"
	"github.com/estudio-sgt/sgt-api/pkg/storage"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

// @title SGT API
// @version 1.0.0
// @description Gestión de trámites regulatorios: expedientes, documentación, vencimientos y reportes.
// @BasePath /api/v1
// @schemes http https
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Migrations.AutoMigrate {
		if err := database.NewMigrator(cfg.Migrations.Path, database.URL(cfg.Database)).Up(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		logr.Info("migrations applied")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Dashboard.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	loc := cfg.Location()
	validate := validation.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	typeRepo := repository.NewTramiteTypeRepository(db)
	expRepo := repository.NewExpedienteRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, repository.DefaultCachePrefix, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	clientSvc := service.NewClientService(clientRepo, userRepo, validate, logr)
	typeSvc := service.NewTramiteTypeService(typeRepo, validate, logr)
	expSvc := service.NewExpedienteService(service.ExpedienteServiceParams{
		Repo:      expRepo,
		Documents: docRepo,
		Clients:   clientRepo,
		Types:     typeRepo,
		Users:     userRepo,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
		Location:  loc,
	})

	docStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return fmt.Errorf("document storage: %w", err)
	}
	docSvc := service.NewDocumentService(service.DocumentServiceParams{
		Repo:        docRepo,
		Expedientes: expRepo,
		Storage:     docStore,
		Signer:      storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
		Audit:       userRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Location:    loc,
		Config: service.DocumentServiceConfig{
			MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
		},
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:      expRepo,
		Documents: docRepo,
		Cache:     cacheSvc,
		Logger:    logr,
		Location:  loc,
		Config: service.DashboardServiceConfig{
			CacheTTL:            cfg.Dashboard.CacheTTL,
			UpcomingLimit:       cfg.Dashboard.UpcomingLimit,
			UpcomingHorizonDays: cfg.Dashboard.UpcomingHorizonDays,
		},
	})

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		reportSvc, queue, err := buildReports(ctx, cfg, logr, metrics, reportRepo, expRepo, docRepo)
		if err != nil {
			return err
		}
		defer queue.Stop()
		reportHandler = handler.NewReportHandler(reportSvc)
	}

	if cfg.Deadlines.SweepEnabled {
		go jobs.Every(ctx, "overdue-sweep", cfg.Deadlines.SweepInterval, logr, func(ctx context.Context) error {
			_, err := expSvc.SweepOverdue(ctx)
			return err
		})
	}

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, routes{
		auth:         handler.NewAuthHandler(authSvc),
		users:        handler.NewUserHandler(userSvc),
		clients:      handler.NewClientHandler(clientSvc),
		tramiteTypes: handler.NewTramiteTypeHandler(typeSvc),
		expedientes:  handler.NewExpedienteHandler(expSvc),
		documents:    handler.NewDocumentHandler(docSvc, cfg.APIPrefix),
		dashboard:    handler.NewDashboardHandler(dashboardSvc),
		reports:      reportHandler,
		health:       handler.NewHealthHandler(checks, metrics, logr),
		tokens:       authSvc,
		audit:        userRepo,
		metrics:      metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildReports(ctx context.Context, cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService,
	reportRepo *repository.ReportRepository, expRepo *repository.ExpedienteRepository, docRepo *repository.DocumentRepository,
) (*service.ReportService, *jobs.Queue, error) {
	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("report storage: %w", err)
	}
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Source:    expRepo,
		Documents: docRepo,
		Storage:   exportStore,
		Signer:    storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		Logger:    logr,
		Location:  cfg.Location(),
		Config: service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		},
	})

	worker := service.NewReportWorker(reportRepo, exportSvc, metrics, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: 5 * time.Minute,
		OnFailure:  worker.OnFailure,
		Logger:     logr,
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(reportRepo, queue, exportSvc, validation.New(), logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	if n := reportSvc.RecoverPendingJobs(ctx); n > 0 {
		logr.Info("requeued pending report jobs", zap.Int("count", n))
	}
	go reportSvc.StartCleanup(ctx)
	return reportSvc, queue, nil
}
