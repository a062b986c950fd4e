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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-dashboard-api/api/swagger"
	"github.com/noah-isme/school-dashboard-api/internal/handler"
	"github.com/noah-isme/school-dashboard-api/internal/middleware"
	"github.com/noah-isme/school-dashboard-api/internal/repository"
	"github.com/noah-isme/school-dashboard-api/internal/service"
	"github.com/noah-isme/school-dashboard-api/pkg/cache"
	"github.com/noah-isme/school-dashboard-api/pkg/config"
	"github.com/noah-isme/school-dashboard-api/pkg/database"
	"github.com/noah-isme/school-dashboard-api/pkg/jobs"
	"github.com/noah-isme/school-dashboard-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-dashboard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-dashboard-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-dashboard-api/pkg/storage"
)

// @title School Dashboard API
// @version 1.0.0
// @description Role-based school dashboards, rosters and the class-teacher assignment rule
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	snapshotStore, err := storage.NewLocalStorage(cfg.Snapshots.Dir)
	if err != nil {
		logr.Fatal("failed to prepare snapshot storage", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewTeacherAssignmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, teacherRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, departmentRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, departmentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, academicRepo, validate, logr)
	academicSvc := service.NewAcademicService(academicRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, repository.NewFileStudentSnapshotStore(snapshotStore), userRepo, validate, logr)
	assignmentSvc := service.NewTeacherAssignmentService(service.TeacherAssignmentServiceParams{
		Teachers:    teacherRepo,
		Classes:     classRepo,
		Subjects:    subjectRepo,
		Terms:       academicRepo,
		Assignments: assignmentRepo,
		Audit:       userRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, studentRepo, academicRepo, assignmentRepo, cacheSvc, validate, logr)
	assessmentSvc := service.NewAssessmentService(service.AssessmentServiceParams{
		Repo:        assessmentRepo,
		Classes:     classRepo,
		Subjects:    subjectRepo,
		Students:    studentRepo,
		Terms:       academicRepo,
		Assignments: assignmentRepo,
		Cache:       cacheSvc,
		Validator:   validate,
		Logger:      logr,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:        dashboardRepo,
		Terms:       academicRepo,
		Assignments: assignmentRepo,
		Attendance:  attendanceRepo,
		Grades:      assessmentRepo,
		Departments: departmentRepo,
		Teachers:    teacherRepo,
		Students:    studentRepo,
		Cache:       cacheSvc,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Jobs:         exportJobRepo,
		Terms:        academicRepo,
		Classes:      classRepo,
		Students:     studentRepo,
		ClassTeacher: assignmentRepo,
		Attendance:   attendanceRepo,
		Storage:      exportStore,
		Signer:       storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		Metrics:      metrics,
		Validator:    validate,
		Logger:       logr,
		Config:       service.ExportConfig{APIPrefix: cfg.APIPrefix},
	})

	exportQueue := jobs.NewQueue("exports", exportSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		OnFailure:  exportSvc.Fail,
		Logger:     logr,
	})
	exportSvc.SetQueue(exportQueue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	ops := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Departments: handler.NewDepartmentHandler(departmentSvc),
		Teachers:    handler.NewTeacherHandler(teacherSvc, assignmentSvc),
		Subjects:    handler.NewSubjectHandler(subjectSvc),
		Classes:     handler.NewClassHandler(classSvc),
		Terms:       handler.NewTermHandler(academicSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Assessments: handler.NewAssessmentHandler(assessmentSvc),
		Dashboards:  handler.NewDashboardHandler(dashboardSvc),
		Exports:     handler.NewExportHandler(exportSvc),
	}, authSvc, middleware.DefaultPolicy())

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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
