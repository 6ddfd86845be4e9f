package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusdesk/faculty-api/api/swagger"
	"github.com/campusdesk/faculty-api/internal/handler"
	"github.com/campusdesk/faculty-api/internal/middleware"
	"github.com/campusdesk/faculty-api/internal/models"
	"github.com/campusdesk/faculty-api/internal/repository"
	"github.com/campusdesk/faculty-api/internal/service"
	"github.com/campusdesk/faculty-api/pkg/cache"
	"github.com/campusdesk/faculty-api/pkg/config"
	"github.com/campusdesk/faculty-api/pkg/database"
	"github.com/campusdesk/faculty-api/pkg/jobs"
	"github.com/campusdesk/faculty-api/pkg/logger"
	corsmiddleware "github.com/campusdesk/faculty-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusdesk/faculty-api/pkg/middleware/requestid"
)

// @title Faculty Scheduling API
// @version 1.0.0
// @description Weekly timetables, class sessions, faculty activities and the student meeting workflow
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis only backs the availability cache; run without it.
		logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	sessionRepo := repository.NewClassSessionRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	locks := service.NewFacultyLocks()

	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	conflictSvc := service.NewConflictService(timetableRepo, activityRepo, holidayRepo, sessionRepo, metricsSvc, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, userRepo, conflictSvc, cacheRepo, metricsSvc, service.AvailabilityConfig{
		WindowDays:   cfg.Availability.WindowDays,
		DayStartHour: cfg.Availability.DayStartHour,
		DayEndHour:   cfg.Availability.DayEndHour,
		CacheTTL:     cfg.Availability.CacheTTL,
	}, logr)
	materializerSvc := service.NewMaterializerService(timetableRepo, sessionRepo, holidayRepo, locks, metricsSvc, cfg.Materializer.ChunkSize, logr)
	activitySvc := service.NewActivityService(activityRepo, conflictSvc, timetableSvc, locks, logr)
	meetingSvc := service.NewMeetingService(meetingRepo, activityRepo, conflictSvc, timetableSvc, locks, notificationSvc, metricsSvc, logr)
	sessionSvc := service.NewSessionService(sessionRepo, conflictSvc, timetableSvc, locks, notificationSvc, logr)
	holidaySvc := service.NewHolidayService(holidayRepo, logr)
	authSvc := service.NewAuthService(userRepo, service.JWTSettings{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, logr)
	integritySvc := service.NewIntegrityService(sessionRepo, meetingRepo, activityRepo, metricsSvc, logr)
	exportSvc := service.NewExportService(sessionRepo, logr)

	if cfg.Integrity.Enabled {
		if err := integritySvc.Start(cfg.Integrity.Schedule); err != nil {
			logr.Sugar().Fatalw("failed to schedule integrity sweep", "error", err)
		}
		defer integritySvc.Stop()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, materializerSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)
	holidayHandler := handler.NewHolidayHandler(holidaySvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	adminHandler := handler.NewAdminHandler(userRepo, integritySvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/timetables/student/me", middleware.RequireRoles(models.RoleStudent), timetableHandler.Student)
		authed.GET("/timetables/:facultyId", timetableHandler.Get)
		authed.POST("/timetables/:facultyId", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), timetableHandler.Create)
		authed.PUT("/timetables/:facultyId", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), timetableHandler.Update)
		authed.PUT("/timetables/:facultyId/slots/:day/:period", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), timetableHandler.UpdateSlot)
		authed.GET("/timetables/:facultyId/availability", timetableHandler.Availability)
		authed.POST("/timetables/:facultyId/materialize", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), timetableHandler.Materialize)

		authed.GET("/sessions", sessionHandler.List)
		authed.GET("/sessions/:id", sessionHandler.Get)
		authed.POST("/sessions", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), sessionHandler.Create)
		authed.POST("/sessions/:id/complete", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), sessionHandler.Complete)
		authed.POST("/sessions/:id/reopen", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), sessionHandler.Reopen)
		authed.POST("/sessions/:id/cancel", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), sessionHandler.Cancel)
		authed.POST("/sessions/:id/reschedule", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), sessionHandler.Reschedule)

		authed.GET("/activities", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), activityHandler.List)
		authed.GET("/activities/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), activityHandler.Get)
		authed.POST("/activities", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), activityHandler.Create)
		authed.PUT("/activities/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), activityHandler.Update)
		authed.DELETE("/activities/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), activityHandler.Delete)

		authed.GET("/meetings", meetingHandler.List)
		authed.GET("/meetings/:id", meetingHandler.Get)
		authed.POST("/meetings", middleware.RequireRoles(models.RoleStudent), meetingHandler.Request)
		authed.POST("/meetings/:id/transition", meetingHandler.Transition)

		authed.GET("/holidays", holidayHandler.List)
		authed.GET("/holidays/:id", holidayHandler.Get)
		authed.POST("/holidays", middleware.RequireRoles(models.RoleAdmin), holidayHandler.Create)
		authed.PUT("/holidays/:id", middleware.RequireRoles(models.RoleAdmin), holidayHandler.Update)
		authed.DELETE("/holidays/:id", middleware.RequireRoles(models.RoleAdmin), holidayHandler.Delete)

		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:id/read", notificationHandler.MarkRead)

		if cfg.Export.Enabled {
			authed.GET("/exports/sessions/:facultyId", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), exportHandler.SessionReport)
		}

		admin := authed.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/integrity/sweep", adminHandler.RunIntegritySweep)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
