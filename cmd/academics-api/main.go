package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/hums-platform/academics-api/api/swagger"
	"github.com/hums-platform/academics-api/internal/handler"
	"github.com/hums-platform/academics-api/internal/middleware"
	"github.com/hums-platform/academics-api/internal/models"
	"github.com/hums-platform/academics-api/internal/repository"
	"github.com/hums-platform/academics-api/internal/service"
	"github.com/hums-platform/academics-api/pkg/cache"
	"github.com/hums-platform/academics-api/pkg/config"
	"github.com/hums-platform/academics-api/pkg/database"
	"github.com/hums-platform/academics-api/pkg/logger"
	corsmiddleware "github.com/hums-platform/academics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hums-platform/academics-api/pkg/middleware/requestid"
)

// @title HUMS Academics API
// @version 1.0.0
// @description Grade calculation and exam scheduling service
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	// Redis is an optimization for the read-mostly grade scale; the API
	// stays up without it.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, grade scale caching disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	componentRepo := repository.NewGradeComponentRepository(db)
	entryRepo := repository.NewGradeEntryRepository(db)
	resultRepo := repository.NewGradeResultRepository(db)
	scaleRepo := repository.NewGradeScaleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	classRepo := repository.NewClassRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	scaleSvc := service.NewGradeScaleService(scaleRepo, redisClient, cfg.Grading.ScaleCacheTTL, metricsSvc, logr)
	componentSvc := service.NewGradeComponentService(componentRepo, entryRepo, classRepo, validate, logr)
	gradeSvc := service.NewGradeService(componentRepo, entryRepo, resultRepo, enrollmentRepo, scaleSvc, auditRepo, validate, logr)
	examSvc := service.NewExamService(examRepo, classRepo, roomRepo, enrollmentRepo, auditRepo, validate, logr, cfg.Exams.FailOnStudentConflict)

	componentHandler := handler.NewGradeComponentHandler(componentSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, cfg.Grading.TranscriptName)
	scaleHandler := handler.NewGradeScaleHandler(scaleSvc)
	examHandler := handler.NewExamHandler(examSvc)
	opsHandler := handler.NewOpsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Actor())
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/classes/:classId/grade-components", componentHandler.List)
		api.POST("/classes/:classId/grade-components", componentHandler.Create)
		api.GET("/classes/:classId/grade-components/validate", componentHandler.ValidateWeights)
		api.PATCH("/grade-components/:id", componentHandler.Update)
		api.DELETE("/grade-components/:id", componentHandler.Delete)

		api.PUT("/grade-components/:id/entries", gradeHandler.BulkEntries)
		api.GET("/enrollments/:enrollmentId/grade", gradeHandler.EnrollmentBreakdown)
		api.GET("/classes/:classId/grades", gradeHandler.ClassResults)
		api.POST("/classes/:classId/grades/finalize", gradeHandler.Finalize)
		api.POST("/classes/:classId/grades/unfinalize", gradeHandler.Unfinalize)
		api.GET("/classes/:classId/grades/audit", gradeHandler.AuditTrail)
		api.GET("/students/:studentId/gpa", gradeHandler.GPA)
		api.GET("/students/:studentId/transcript", gradeHandler.Transcript)

		api.GET("/grade-scales/default", scaleHandler.Default)

		api.GET("/exams", examHandler.List)
		api.POST("/exams", examHandler.Schedule)
		api.GET("/exams/:id", examHandler.Get)
		api.POST("/exams/:id/reschedule", examHandler.Reschedule)
		api.POST("/exams/:id/complete", examHandler.Complete)
		api.POST("/exams/:id/cancel", examHandler.Cancel)
		api.DELETE("/exams/:id", middleware.Audit(auditRepo, models.AuditActionExamDelete, "exams"), examHandler.Delete)
		api.GET("/rooms/:roomId/availability", examHandler.RoomAvailability)

		api.GET("/ops/status", opsHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
