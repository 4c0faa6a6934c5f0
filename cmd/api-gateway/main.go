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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-registrar-api/api/swagger"
	"github.com/noah-isme/uni-registrar-api/internal/handler"
	"github.com/noah-isme/uni-registrar-api/internal/middleware"
	"github.com/noah-isme/uni-registrar-api/internal/repository"
	"github.com/noah-isme/uni-registrar-api/internal/service"
	"github.com/noah-isme/uni-registrar-api/pkg/cache"
	"github.com/noah-isme/uni-registrar-api/pkg/config"
	"github.com/noah-isme/uni-registrar-api/pkg/database"
	"github.com/noah-isme/uni-registrar-api/pkg/export"
	"github.com/noah-isme/uni-registrar-api/pkg/jobs"
	"github.com/noah-isme/uni-registrar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-registrar-api/pkg/middleware/requestid"
)

// @title Uni Registrar API
// @version 0.1.0
// @description Course enrollment, grading and academic records
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	// Repositories.
	semesterRepo := repository.NewSemesterRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services.
	metrics := service.NewMetricsService()
	checker := service.DirectPrerequisiteChecker{}

	semesterSvc := service.NewSemesterService(semesterRepo, logr)
	offeringSvc := service.NewOfferingService(
		offeringRepo, unitRepo, studentRepo, enrollmentRepo, semesterSvc,
		checker, cacheRepo, cfg.Catalog.CacheTTL, logr,
	)
	unitSvc := service.NewUnitService(unitRepo)
	gradeSvc := service.NewGradeService(enrollmentRepo, studentRepo, nil, offeringSvc, metrics, logr)
	admissionSvc := service.NewAdmissionService(
		studentRepo, offeringRepo, unitRepo, enrollmentRepo,
		checker, offeringSvc, metrics, cfg.Admission.TxTimeout, logr,
	)
	studentSvc := service.NewStudentService(studentRepo, userRepo, unitRepo, semesterSvc, cfg.Registration.NumberRetries, logr)
	transcriptSvc := service.NewTranscriptService(studentRepo, enrollmentRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, logr)

	// Background GPA recomputation.
	gpaQueue := jobs.NewQueue("gpa", gradeSvc.HandleRecomputeJob, jobs.QueueConfig{
		Workers:    cfg.GPA.WorkerConcurrency,
		MaxRetries: cfg.GPA.WorkerRetries,
		RetryDelay: cfg.GPA.RetryDelay,
		Logger:     logr,
	})
	gradeSvc.SetQueue(gpaQueue)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gpaQueue.Start(rootCtx)
	defer gpaQueue.Stop()

	go reportQueueDepth(rootCtx, gpaQueue, metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

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

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Semester:   handler.NewSemesterHandler(semesterSvc),
		Unit:       handler.NewUnitHandler(unitSvc),
		Offering:   handler.NewOfferingHandler(offeringSvc),
		Student:    handler.NewStudentHandler(studentSvc, transcriptSvc),
		Enrollment: handler.NewEnrollmentHandler(admissionSvc, gradeSvc, studentSvc),
	}, authSvc, studentSvc)

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

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func reportQueueDepth(ctx context.Context, queue *jobs.Queue, metrics *service.MetricsService) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetQueueDepth(queue.Depth())
		}
	}
}
