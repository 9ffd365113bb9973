package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/kiwicoders/sessions-api/api/swagger"
	"github.com/kiwicoders/sessions-api/internal/handler"
	"github.com/kiwicoders/sessions-api/internal/middleware"
	"github.com/kiwicoders/sessions-api/internal/models"
	"github.com/kiwicoders/sessions-api/internal/repository"
	"github.com/kiwicoders/sessions-api/internal/service"
	"github.com/kiwicoders/sessions-api/pkg/cache"
	"github.com/kiwicoders/sessions-api/pkg/config"
	"github.com/kiwicoders/sessions-api/pkg/database"
	"github.com/kiwicoders/sessions-api/pkg/jobs"
	"github.com/kiwicoders/sessions-api/pkg/logger"
	corsmiddleware "github.com/kiwicoders/sessions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kiwicoders/sessions-api/pkg/middleware/requestid"
	"github.com/kiwicoders/sessions-api/pkg/storage"
)

// @title Club Sessions API
// @version 1.0.0
// @description Scheduling, enrollment and attendance for weekly club sessions
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, calendar cache disabled", zap.Error(err))
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Registers.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare register storage", zap.Error(err))
	}
	signer := storage.NewDownloadTokenSigner(cfg.Registers.SignedURLSecret, cfg.Registers.SignedURLTTL)

	validate := validator.New()

	termRepo := repository.NewTermRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	registerJobRepo := repository.NewRegisterJobRepository(db)

	metricsService := service.NewMetricsService()
	calendarService := service.NewCalendarService(sessionRepo, cacheRepo, cfg.Calendar.CacheTTL, logr)
	calendarService.SetMetrics(metricsService)

	termService := service.NewTermService(termRepo, validate, logr)
	sessionService := service.NewSessionService(sessionRepo, termRepo, calendarService, validate, logr)
	occurrenceService := service.NewOccurrenceService(sessionRepo, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, participantRepo, sessionRepo, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, enrollmentRepo, sessionRepo, validate, logr)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	exportService := service.NewRegisterExportService(registerJobRepo, sessionRepo, attendanceService, store, signer, logr)

	queue := jobs.NewQueue("register-exports", func(ctx context.Context, job jobs.Job) error {
		err := exportService.Process(ctx, job)
		if err != nil {
			metricsService.ObserveExportJob("failed")
			return err
		}
		metricsService.ObserveExportJob("finished")
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Registers.WorkerConcurrency,
		MaxRetries: cfg.Registers.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(context.Background())
	defer queue.Stop()
	exportService.SetQueue(queue)

	authHandler := handler.NewAuthHandler(authService)
	termHandler := handler.NewTermHandler(termService)
	sessionHandler := handler.NewSessionHandler(sessionService, occurrenceService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	registerHandler := handler.NewRegisterExportHandler(exportService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface: login, signup, and the downloads reached via signed
	// tokens from the job status endpoint.
	api.POST("/auth/login", authHandler.Login)
	api.POST("/signups", enrollmentHandler.Signup)
	api.GET("/registers/download", registerHandler.Download)

	staff := api.Group("")
	staff.Use(middleware.JWT(authService))
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	{
		staff.GET("/auth/me", authHandler.Me)

		staff.GET("/terms", termHandler.List)
		staff.GET("/terms/:id", termHandler.Get)

		staff.GET("/sessions", sessionHandler.List)
		staff.GET("/sessions/:id", sessionHandler.Get)
		staff.GET("/sessions/:id/occurrences", sessionHandler.Occurrences)

		staff.GET("/calendar", calendarHandler.Range)

		staff.GET("/sessions/:id/enrollments", enrollmentHandler.List)
		staff.GET("/sessions/:id/enrollments/summary", enrollmentHandler.Summary)
		staff.POST("/sessions/:id/enrollments/bulk-status", enrollmentHandler.BulkStatus)

		staff.GET("/sessions/:id/attendance", attendanceHandler.Sheet)
		staff.POST("/sessions/:id/attendance/bulk", attendanceHandler.BulkSave)
		staff.GET("/enrollments/:id/attendance/stats", attendanceHandler.Stats)
		staff.GET("/enrollments/:id/attendance/eligible-dates", attendanceHandler.EligibleDates)

		staff.POST("/sessions/:id/registers", registerHandler.Create)
		staff.GET("/sessions/:id/registers", registerHandler.List)
		staff.GET("/registers/:id", registerHandler.Status)
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(authService))
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/terms", termHandler.Create)
		admin.PUT("/terms/:id", termHandler.Update)
		admin.DELETE("/terms/:id", termHandler.Delete)

		admin.POST("/sessions", sessionHandler.Create)
		admin.PUT("/sessions/:id", sessionHandler.Update)
		admin.DELETE("/sessions/:id", sessionHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
