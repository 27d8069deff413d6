package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"stockledger/internal/caching"
	"stockledger/internal/config"
	"stockledger/internal/handlers"
	"stockledger/internal/jobs/background"
	"stockledger/internal/middleware"
	"stockledger/internal/models"
	"stockledger/internal/outbox"
	"stockledger/internal/repositories"
	"stockledger/internal/services"
	"stockledger/pkg/database"
	"stockledger/pkg/telemetry"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "stockledger", version)
	if err != nil {
		logger.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Errorf("Error shutting down tracer: %v", err)
		}
	}()

	// Database connection
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePool(pool, logger)

	// Redis: stock cache and distributed locks
	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer redisClient.Close()
	stockCache := caching.NewRedisCacheService(redisClient)
	locker := caching.NewRedisLocker(redisClient)

	// MinIO: import archives and stock exports
	objects, err := services.NewMinioService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatalf("Failed to initialize MinIO service: %v", err)
	}
	for _, bucket := range []string{services.ImportsBucket, services.ExportsBucket} {
		if err := objects.EnsureBucketExists(ctx, bucket); err != nil {
			logger.WithField("bucket", bucket).Warnf("object storage unavailable: %v", err)
		}
	}

	refs, err := services.NewRefGenerator(cfg.NodeID)
	if err != nil {
		logger.Fatalf("Failed to initialize reference generator: %v", err)
	}

	// Services
	store := repositories.NewStore(pool)
	auditSvc := services.NewAuditLogsService(store.Outbox(), store.AuditLogs(), store.Users())
	notifier := services.NewNotificationService(store.Outbox(), services.SMTPSettings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, nil, logger)

	hierarchySvc := services.NewHierarchyService(store, auditSvc, notifier, stockCache, logger)
	ledgerSvc := services.NewLedgerService(store, refs, stockCache, auditSvc, notifier, logger)
	approvalSvc := services.NewApprovalService(store, refs, auditSvc, notifier, stockCache, logger)
	recoverySvc := services.NewRecoveryService(store, locker, auditSvc, notifier, stockCache, logger)
	importSvc := services.NewImportService(store, refs, objects, locker, stockCache, auditSvc, notifier, logger)
	exportSvc := services.NewExportService(store, objects, logger)

	// Background jobs
	dispatcher := outbox.NewDispatcher(store, map[models.OutboxKind]outbox.Handler{
		models.OutboxKindAudit:        auditSvc.Persist,
		models.OutboxKindNotification: notifier.Deliver,
	}, outbox.DefaultSettings(), logger)

	scheduler, err := background.NewJobScheduler(dispatcher, recoverySvc, locker, background.Intervals{
		Outbox:    cfg.OutboxInterval,
		Reconcile: cfg.ReconcileInterval,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	// Global middleware
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(map[string]interface{}{
				"module":  "http",
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
			} else {
				entry.Info("request")
			}
			return nil
		},
	}))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Version middleware
	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// API routes (require JWT, an active user and RBAC)
	v1 := e.Group("/v1")
	v1.Use(versionMiddleware.VersionHeader("v1"))
	v1.Use(echojwt.WithConfig(middleware.JWTConfig(cfg.JWTSecret)))
	v1.Use(middleware.ActorMiddleware(store.Users()))

	rbacMiddleware := middleware.NewRBACMiddleware(services.NewRBACService())

	handlers.RegisterRoutes(e, v1, handlers.Handlers{
		Health: handlers.NewHealthHandlers(
			pool,
			stockCache,
			handlers.PingFunc(func(ctx context.Context) error {
				return objects.EnsureBucketExists(ctx, services.ExportsBucket)
			}),
			scheduler.GetJobStatus,
			version,
		),
		Hierarchy: handlers.NewHierarchyHandlers(hierarchySvc, logger),
		Inventory: handlers.NewInventoryHandlers(ledgerSvc, importSvc, exportSvc, logger),
		Approvals: handlers.NewApprovalHandlers(approvalSvc, logger),
		Recovery:  handlers.NewRecoveryHandlers(recoverySvc, logger),
		AuditLogs: handlers.NewAuditLogsHandlers(auditSvc, logger),
	}, rbacMiddleware.RequirePermission)

	// Start server
	go func() {
		logger.WithFields(map[string]interface{}{"version": version, "port": cfg.Port}).Info("stockledger server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		logger.Errorf("Scheduler shutdown: %v", err)
	}
}
