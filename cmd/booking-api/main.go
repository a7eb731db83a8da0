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

	_ "github.com/tutorhive/tutorhive-api/api/swagger"
	"github.com/tutorhive/tutorhive-api/internal/handler"
	"github.com/tutorhive/tutorhive-api/internal/middleware"
	"github.com/tutorhive/tutorhive-api/internal/models"
	"github.com/tutorhive/tutorhive-api/internal/repository"
	"github.com/tutorhive/tutorhive-api/internal/service"
	"github.com/tutorhive/tutorhive-api/pkg/cache"
	"github.com/tutorhive/tutorhive-api/pkg/config"
	"github.com/tutorhive/tutorhive-api/pkg/database"
	"github.com/tutorhive/tutorhive-api/pkg/jobs"
	"github.com/tutorhive/tutorhive-api/pkg/lock"
	"github.com/tutorhive/tutorhive-api/pkg/logger"
	corsmiddleware "github.com/tutorhive/tutorhive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tutorhive/tutorhive-api/pkg/middleware/requestid"
)

// @title TutorHive Booking API
// @version 0.1.0
// @description Lesson booking and scheduling backend
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRequestRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	rescheduleRepo := repository.NewRescheduleRequestRepository(db)
	suspensionRepo := repository.NewSuspensionRequestRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metrics := service.NewMetricsService()
	bookingLock := lock.NewRedisLock(redisClient, "lock")

	notifications := service.NewNotificationService(jobs.QueueConfig{Logger: logr}, logr)
	busyIndex := service.NewBusyIndexService(sessionRepo, cacheRepo, metrics, logr, service.BusyIndexConfig{
		TTL:           cfg.Booking.BusyIndexTTL,
		Jitter:        cfg.Booking.BusyIndexJitter,
		KnownEmptyTTL: cfg.Booking.KnownEmptyTTL,
	})
	availability := service.NewAvailabilityService(availabilityRepo, busyIndex, sessionRepo, bookingRepo, nil, logr)
	generator := service.NewScheduleGeneratorService(sessionRepo, availability, logr)
	quota := service.NewQuotaService(quotaRepo, service.QuotaConfig{
		StudentMonthlyAllowance: cfg.Quota.StudentMonthlyAllowance,
		TeacherMonthlyAllowance: cfg.Quota.TeacherMonthlyAllowance,
	}, logr)

	workflowCfg := service.BookingWorkflowConfig{
		LockTTL:             cfg.Lock.TTL,
		LockRetries:         cfg.Lock.Retries,
		LockRetryInterval:   cfg.Lock.RetryInterval,
		TrialWindowDays:     cfg.Booking.TrialWindowDays,
		CountCancelledTrial: cfg.Booking.CountCancelledTrial,
	}
	booking := service.NewBookingService(
		bookingRepo, sessionRepo, enrollmentRepo, generator, availability,
		busyIndex, bookingLock, db, notifications, metrics, nil, logr, workflowCfg,
	)
	reschedule := service.NewRescheduleService(
		rescheduleRepo, sessionRepo, enrollmentRepo, generator, availability,
		busyIndex, quota, bookingLock, db, notifications, metrics, nil, logr, workflowCfg,
	)
	suspension := service.NewSuspensionService(
		suspensionRepo, sessionRepo, enrollmentRepo, busyIndex, quota,
		db, notifications, metrics, nil, logr,
	)
	auth := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "tutorhive-booking-api",
	})
	exporter := service.NewExportService(sessionRepo, logr)
	sweeper := service.NewSweeperService(sessionRepo, logr, service.SweeperConfig{
		Interval: cfg.Sweeper.Interval,
		Workers:  cfg.Sweeper.Workers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications.Start(ctx)
	defer notifications.Stop()
	if cfg.Sweeper.Enabled {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(auth)
	availabilityHandler := handler.NewAvailabilityHandler(availability)
	bookingHandler := handler.NewBookingHandler(booking)
	rescheduleHandler := handler.NewRescheduleHandler(reschedule)
	suspensionHandler := handler.NewSuspensionHandler(suspension)
	quotaHandler := handler.NewQuotaHandler(quota)
	exportHandler := handler.NewExportHandler(exporter)
	metricsHandler := handler.NewMetricsHandler(metrics, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(auth))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/teachers/:id/availability", availabilityHandler.Day)

		teacherOnly := middleware.RequireRoles(models.RoleTeacher)
		authed.GET("/availability/pattern", teacherOnly, availabilityHandler.WeeklyPattern)
		authed.PUT("/availability/pattern", teacherOnly, availabilityHandler.UpsertWeeklyPattern)
		authed.PUT("/availability/override", teacherOnly, availabilityHandler.UpsertDailyOverride)

		authed.POST("/bookings", middleware.RequireRoles(models.RoleStudent), bookingHandler.Create)
		authed.GET("/bookings", bookingHandler.List)
		authed.GET("/bookings/:id", bookingHandler.Get)
		authed.POST("/bookings/:id/approve", teacherOnly, bookingHandler.Approve)
		authed.POST("/bookings/:id/reject", teacherOnly, bookingHandler.Reject)
		authed.DELETE("/bookings/:id", middleware.RequireRoles(models.RoleStudent), bookingHandler.Cancel)

		authed.DELETE("/enrollments/:id", bookingHandler.CancelEnrollment)
		authed.GET("/enrollments/:id/reschedules", rescheduleHandler.ListByEnrollment)
		authed.GET("/enrollments/:id/suspensions", suspensionHandler.ListByEnrollment)
		authed.GET("/enrollments/:id/quota", quotaHandler.Usage)
		authed.POST("/enrollments/:id/resume", teacherOnly, suspensionHandler.Resume)
		if cfg.Export.Enabled {
			authed.GET("/enrollments/:id/timetable", exportHandler.Timetable)
		}

		authed.POST("/reschedules", rescheduleHandler.Create)
		authed.GET("/reschedules/:id", rescheduleHandler.Get)
		authed.DELETE("/reschedules/:id", rescheduleHandler.Cancel)
		authed.POST("/reschedules/:id/approve", teacherOnly, rescheduleHandler.Approve)
		authed.POST("/reschedules/:id/reject", teacherOnly, rescheduleHandler.Reject)

		authed.POST("/suspensions", suspensionHandler.Create)
		authed.GET("/suspensions/:id", suspensionHandler.Get)
		authed.POST("/suspensions/:id/approve", teacherOnly, suspensionHandler.Approve)
		authed.POST("/suspensions/:id/reject", teacherOnly, suspensionHandler.Reject)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
}
