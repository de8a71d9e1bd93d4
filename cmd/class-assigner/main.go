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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-class-assigner/api/swagger"
	"github.com/noah-isme/sma-class-assigner/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-class-assigner/internal/middleware"
	"github.com/noah-isme/sma-class-assigner/internal/models"
	"github.com/noah-isme/sma-class-assigner/internal/repository"
	"github.com/noah-isme/sma-class-assigner/internal/service"
	"github.com/noah-isme/sma-class-assigner/pkg/cache"
	"github.com/noah-isme/sma-class-assigner/pkg/config"
	"github.com/noah-isme/sma-class-assigner/pkg/jobs"
	"github.com/noah-isme/sma-class-assigner/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-class-assigner/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-class-assigner/pkg/middleware/requestid"
)

// @title SMA Class Assigner API
// @version 1.0.0
// @description Assigns students to capacity-limited classes by grade, submission time and ranked preferences.
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	var readiness handler.Pinger
	var cacheRepo *repository.CacheRepository
	if cfg.Assigner.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis unavailable", "error", err)
		}
		cacheRepo = repository.NewCacheRepository(client, logr)
		defer cacheRepo.Close() //nolint:errcheck
		readiness = cacheRepo
	}
	var cacheRepoIface service.CacheRepository
	if cacheRepo != nil {
		cacheRepoIface = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheRepoIface, metricsSvc, cfg.Assigner.ResultTTL, logr, cfg.Assigner.CacheEnabled)

	assignmentSvc := service.NewClassAssignmentService(service.ClassAssignmentConfig{
		MaxClasses:      cfg.Assigner.MaxClasses,
		DefaultCapacity: cfg.Assigner.DefaultCapacity,
		LunchEnabled:    cfg.Assigner.LunchEnabled,
		LunchMarker:     cfg.Assigner.LunchMarker,
		DuplicatePolicy: models.DuplicatePolicy(cfg.Assigner.DuplicatePolicy),
		MaxStudents:     cfg.Assigner.MaxStudents,
		ResultTTL:       cfg.Assigner.ResultTTL,
	}, validator.New(), metricsSvc, cacheSvc, logr)

	queue := jobs.NewQueue("assignment-runs", assignmentSvc.ProcessRunJob, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.QueueSize,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	assignmentSvc.AttachQueue(queue)

	go purgeExpiredRuns(ctx, assignmentSvc, cfg.Assigner.ResultTTL, logr)

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	admins := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metricsHandler.Summary)
	api.POST("/assignments/preview", internalmiddleware.OptionalJWT(tokens), assignmentHandler.Preview)

	runs := api.Group("/assignments/runs", internalmiddleware.JWT(tokens))
	runs.POST("", admins, internalmiddleware.Audit(logr, "assignment_run.create"), assignmentHandler.CreateRun)
	runs.GET("/:id", assignmentHandler.GetRun)
	runs.GET("/:id/roster", assignmentHandler.Roster)
	runs.GET("/:id/members/:name", assignmentHandler.MemberSchedule)
	runs.GET("/:id/export", assignmentHandler.Export)
	runs.DELETE("/:id", admins, internalmiddleware.Audit(logr, "assignment_run.delete"), assignmentHandler.DeleteRun)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}

func purgeExpiredRuns(ctx context.Context, svc *service.ClassAssignmentService, ttl time.Duration, logr *zap.Logger) {
	interval := ttl / 2
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := svc.PurgeExpired(); removed > 0 {
				logr.Debug("expired assignment runs purged", zap.Int("count", removed))
			}
		}
	}
}
