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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/pawhaven/petcare-api/api/swagger"
	"github.com/pawhaven/petcare-api/internal/handler"
	"github.com/pawhaven/petcare-api/internal/middleware"
	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/internal/repository"
	"github.com/pawhaven/petcare-api/internal/service"
	"github.com/pawhaven/petcare-api/pkg/cache"
	"github.com/pawhaven/petcare-api/pkg/config"
	"github.com/pawhaven/petcare-api/pkg/database"
	"github.com/pawhaven/petcare-api/pkg/jobs"
	"github.com/pawhaven/petcare-api/pkg/logger"
	corsmiddleware "github.com/pawhaven/petcare-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pawhaven/petcare-api/pkg/middleware/requestid"
	"github.com/pawhaven/petcare-api/pkg/storage"
)

// @title PawHaven Petcare API
// @version 0.1.0
// @description Reservation ledger, staff assignment and reporting for a pet-care facility
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	cageRepo := repository.NewCageRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Services.
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	ledger := service.NewReservationService(reservationRepo, cageRepo, slotRepo, cacheRepo,
		service.LedgerConfig{HoldTTL: cfg.Sweeper.HoldTTL}, nil, logr, metricsSvc)

	availabilitySvc := service.NewAvailabilityService(staffRepo, cacheRepo, cfg.Cache.AvailabilityTTL, logr, metricsSvc)

	staffingSvc := service.NewStaffingService(availabilitySvc, staffRepo, assignmentRepo, reviewRepo, serviceRepo,
		service.ScoringWeights{
			Base:          cfg.Scoring.BaseScore,
			HistoryWeight: cfg.Scoring.HistoryWeight,
			RatingWeight:  cfg.Scoring.RatingWeight,
			LoadPenalty:   cfg.Scoring.LoadPenalty,
			DefaultLimit:  cfg.Scoring.DefaultLimit,
		}, nil, logr, metricsSvc)

	paymentSvc := service.NewPaymentService(reservationRepo, logr)
	paymentQueue := jobs.NewQueue("payments", paymentSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Payments.Workers,
		MaxRetries: cfg.Payments.MaxRetries,
		RetryDelay: cfg.Payments.RetryDelay,
		Logger:     logr,
	})
	paymentQueue.Start(ctx)
	defer paymentQueue.Stop()

	bookingSvc := service.NewBookingService(ledger, staffingSvc, slotRepo, serviceRepo, paymentQueue, nil, logr)
	boardingSvc := service.NewBoardingService(ledger, cageRepo, paymentQueue, nil, logr)

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, storeErr := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if storeErr != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", storeErr)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportRepo := repository.NewReportRepository(db)
		exportSvc := service.NewExportService(reservationRepo, assignmentRepo, store, signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr)

		worker := service.NewReportWorker(reportRepo, exportSvc, 3, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: 3,
			RetryDelay: 10 * time.Second,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		reportSvc = service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      3,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	if cfg.Sweeper.Enabled {
		sweeper := service.NewSweeperService(ledger, cfg.Sweeper.Interval, logr, metricsSvc)
		go sweeper.Run(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	boardingHandler := handler.NewBoardingHandler(boardingSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	reservationHandler := handler.NewReservationHandler(ledger)
	staffingHandler := handler.NewStaffingHandler(staffingSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/cages/available", boardingHandler.AvailableCages)
	authed.POST("/boardings", boardingHandler.Create)
	authed.POST("/boardings/:id/cancel", boardingHandler.Cancel)
	authed.POST("/boardings/:id/confirm", boardingHandler.Confirm)

	authed.GET("/slots/available", bookingHandler.AvailableSlots)
	authed.POST("/bookings", bookingHandler.Create)
	authed.POST("/bookings/:id/cancel", bookingHandler.Cancel)

	authed.GET("/reservations", reservationHandler.List)
	authed.GET("/reservations/:id", reservationHandler.Get)

	staffOnly := authed.Group("")
	staffOnly.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleStaff))

	staffOnly.POST("/boardings/:id/check-in", boardingHandler.CheckIn)
	staffOnly.POST("/boardings/:id/check-out", boardingHandler.CheckOut)

	managerOnly := authed.Group("")
	managerOnly.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleManager))

	managerOnly.GET("/staffing/candidates", staffingHandler.Candidates)
	managerOnly.POST("/staffing/assignments", staffingHandler.CommitAssignment)
	managerOnly.POST("/staffing/assignments/:id/status", staffingHandler.UpdateAssignmentStatus)
	managerOnly.GET("/metrics/summary", metricsHandler.Summary)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		authed.POST("/reports", reportHandler.Create)
		authed.GET("/reports/:id", reportHandler.Status)
		// Download authenticates via the signed token itself.
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped", zap.String("addr", addr))
}
