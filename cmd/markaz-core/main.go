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
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/markazapp/markaz-core/api/swagger"
	"github.com/markazapp/markaz-core/internal/handler"
	"github.com/markazapp/markaz-core/internal/lockguard"
	"github.com/markazapp/markaz-core/internal/migrate"
	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/internal/service"
	"github.com/markazapp/markaz-core/pkg/config"
	"github.com/markazapp/markaz-core/pkg/database"
	"github.com/markazapp/markaz-core/pkg/jobs"
	"github.com/markazapp/markaz-core/pkg/logger"
	corsmiddleware "github.com/markazapp/markaz-core/pkg/middleware/cors"
	reqidmiddleware "github.com/markazapp/markaz-core/pkg/middleware/requestid"
)

// @title Markaz Core API
// @version 1.0.0
// @description Local command surface for the Markaz desktop shell
// @BasePath /api/v1
// @schemes http

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

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to open database", "path", cfg.Database.Path, "error", err)
	}
	defer db.Close()

	runner, err := migrate.NewRunner(db, logr, migrate.Catalog())
	if err != nil {
		logr.Sugar().Fatalw("invalid migration catalog", "error", err)
	}
	applied, err := runner.ApplyPending(context.Background())
	if err != nil {
		// A half-migrated schema is not safe to serve. Each migration is
		// transactional, so the file is still consistent at the previous
		// version and a fixed binary can pick up where this one stopped.
		logr.Sugar().Fatalw("schema migration failed", "error", err)
	}
	if applied > 0 {
		logr.Sugar().Infow("schema migrated", "applied", applied)
	}

	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()
	guard := lockguard.New()

	students := service.NewStudentService(db, studentRepo, groupRepo, settingsRepo, auditRepo, validate, logr)
	groups := service.NewGroupService(db, groupRepo, studentRepo, auditRepo, logr)
	attendance := service.NewAttendanceService(db, attendanceRepo, studentRepo, guard, cfg.Scanner.LockTimeout, logr)
	payments := service.NewPaymentService(db, paymentRepo, studentRepo, settingsRepo, auditRepo, logr)
	audit := service.NewAuditService(auditRepo, logr)
	maintenance := service.NewMaintenanceService(db, cfg.Database.Path, logr)
	schema := service.NewSchemaService(runner)

	recalcQueue := jobs.NewQueue("recalc", func(ctx context.Context, job jobs.Job) error {
		result, err := payments.RecalculateAll(ctx)
		if err != nil {
			return err
		}
		metrics.ObserveRecalculation(result)
		refreshStatusGauge(ctx, payments, metrics)
		return nil
	}, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: cfg.Recalc.MaxRetries,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})

	settings := service.NewSettingsService(db, settingsRepo, auditRepo, recalcQueue, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recalcQueue.Start(ctx)
	defer recalcQueue.Stop()

	// Statuses are day-granular, so one pass at startup covers everything
	// that drifted while the app was closed.
	if result, err := payments.RecalculateAll(ctx); err != nil {
		logr.Sugar().Errorw("startup recalculation failed", "error", err)
	} else {
		metrics.ObserveRecalculation(result)
		refreshStatusGauge(ctx, payments, metrics)
	}

	go recalcTicker(ctx, recalcQueue, cfg.Recalc.Interval, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Students:    handler.NewStudentHandler(students),
		Groups:      handler.NewGroupHandler(groups),
		Attendance:  handler.NewAttendanceHandler(attendance, metrics),
		Payments:    handler.NewPaymentHandler(payments, metrics),
		Settings:    handler.NewSettingsHandler(settings),
		Schema:      handler.NewSchemaHandler(schema),
		Maintenance: handler.NewMaintenanceHandler(maintenance, attendance, metrics),
		Audit:       handler.NewAuditHandler(audit),
		Metrics:     metrics,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

// recalcTicker enqueues a periodic recalculation so long-running sessions
// pick up day rollovers without any mutation happening.
func recalcTicker(ctx context.Context, queue *jobs.Queue, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: service.JobTypeRecalculate}); err != nil {
				logr.Sugar().Warnw("failed to enqueue recalculation", "error", err)
			}
		}
	}
}

func refreshStatusGauge(ctx context.Context, payments *service.PaymentService, metrics *service.MetricsService) {
	summary, err := payments.Summary(ctx)
	if err != nil {
		return
	}
	metrics.SetStudentsByStatus(map[models.PaymentStatus]int{
		models.StatusPaid:    summary.Paid,
		models.StatusPending: summary.Pending,
		models.StatusOverdue: summary.Overdue,
		models.StatusDueSoon: summary.DueSoon,
	})
}
