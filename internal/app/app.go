package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_studio_backend/internal/config"
	"course_studio_backend/internal/controller"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"
	"course_studio_backend/pkg/database"
	"course_studio_backend/pkg/logger"
	"course_studio_backend/pkg/messaging"
	"course_studio_backend/pkg/monitoring"
	"course_studio_backend/pkg/security"
	"course_studio_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Backend         cms.Backend
	services        *services
	mq              *messaging.RabbitMQClient
	tracer          *sdktrace.TracerProvider
	ipLimiter       *security.RateLimiter
	userLimiter     *security.RateLimiter
	configCallbacks []func(*config.Config)
}

type repositories struct {
	resolver  *repository.CMSRelationResolver
	profiles  *repository.UserProfileRepository
	attempts  *repository.QuizAttemptRepository
	answers   *repository.QuizAttemptAnswerRepository
	issuances *repository.CertificateIssuanceRepository
	programs  *repository.CertificateProgramRepository
	courses   *repository.CourseRepository
}

type services struct {
	storage   *service.StorageService
	media     *service.MediaService
	metadata  *service.URLMetadataService
	tokens    *service.TokenStore
	grading   *service.GradingService
	authoring *service.AuthoringService
}

type controllers struct {
	session     *controller.SessionController
	attempt     *controller.QuizAttemptController
	answer      *controller.QuizAttemptAnswerController
	certificate *controller.CertificateIssuanceController
	authoring   *controller.AuthoringController
	media       *controller.MediaController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新后依次执行回调
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// initBackend 根据 backend.type 选择 CMS 实现
func (a *App) initBackend(cfg *config.Config) cms.Backend {
	switch cfg.Backend.Type {
	case "memory":
		logger.Log.Warn("Using in-memory CMS backend, data is lost on restart")
		return cms.NewMemoryBackend()
	case "local":
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
		if err != nil {
			logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		}
		a.DB = db
		return cms.NewGormBackend(db)
	default:
		backend := cms.NewHTTPBackend(cms.HTTPConfig{
			BaseURL:  cfg.Backend.BaseURL,
			APIToken: cfg.Backend.APIToken,
			PageSize: cfg.Backend.PageSize,
		})
		a.RegisterConfigCallback(func(c *config.Config) {
			backend.SetToken(c.Backend.APIToken)
		})
		return backend
	}
}

func (a *App) initRepositories(backend cms.Backend, media repository.MediaURLResolver) *repositories {
	resolver := repository.NewRelationResolver(backend)
	profiles := repository.NewUserProfileRepository(backend, media)
	return &repositories{
		resolver:  resolver,
		profiles:  profiles,
		attempts:  repository.NewQuizAttemptRepository(backend, resolver, profiles, media),
		answers:   repository.NewQuizAttemptAnswerRepository(backend, resolver),
		issuances: repository.NewCertificateIssuanceRepository(backend, resolver, profiles, media),
		programs:  repository.NewCertificateProgramRepository(backend, resolver),
		courses:   repository.NewCourseRepository(backend, resolver),
	}
}

func (a *App) eventPublisher(cfg *config.Config) service.EventPublisher {
	if !cfg.Messaging.Enabled {
		return service.NoopPublisher{}
	}
	client, err := messaging.NewRabbitMQClient(cfg.Messaging.URL)
	if err != nil {
		logger.Log.Error("Failed to connect to RabbitMQ, certificate events disabled", zap.Error(err))
		return service.NoopPublisher{}
	}
	a.mq = client
	return service.NewQueuePublisher(client, cfg.Messaging.Queue)
}

func (a *App) sessionStore(cfg *config.Config) service.SessionStore {
	if cfg.Authoring.Store == "redis" && a.Redis != nil {
		return service.NewRedisSessionStore(a.Redis, cfg.Authoring.SessionTTL)
	}
	return service.NewMemorySessionStore()
}

func (a *App) metadataCache(cfg *config.Config) service.MetadataCache {
	if cfg.Metadata.Cache == "redis" && a.Redis != nil {
		return service.NewRedisMetadataCache(a.Redis, cfg.Metadata.CacheTTL)
	}
	return service.NewMemoryMetadataCache()
}

func (a *App) copyrightChecker(cfg *config.Config) service.CopyrightChecker {
	if !cfg.Copyright.Enabled || cfg.Copyright.Endpoint == "" {
		return service.DisabledCopyrightChecker{}
	}
	return service.NewHTTPCopyrightChecker(cfg.Copyright, nil)
}

func (a *App) initServices(repos *repositories, storage *service.StorageService, cfg *config.Config) *services {
	return &services{
		storage:  storage,
		media:    service.NewMediaService(storage, cfg.Metadata.ProbeMedia),
		metadata: service.NewURLMetadataService(a.metadataCache(cfg), cfg.Metadata.FetchTimeout, cfg.Metadata.ProbeMedia),
		tokens:   service.NewTokenStore(cfg.Cookie),
		grading: service.NewGradingService(
			repos.attempts,
			repos.answers,
			repos.issuances,
			repos.programs,
			a.eventPublisher(cfg),
			cfg.Issuer,
		),
		authoring: service.NewAuthoringService(repos.courses, a.sessionStore(cfg), a.copyrightChecker(cfg)),
	}
}

func (a *App) initControllers(repos *repositories, s *services) *controllers {
	return &controllers{
		session:     controller.NewSessionController(s.tokens),
		attempt:     controller.NewQuizAttemptController(repos.attempts, s.grading),
		answer:      controller.NewQuizAttemptAnswerController(repos.answers),
		certificate: controller.NewCertificateIssuanceController(repos.issuances),
		authoring:   controller.NewAuthoringController(s.authoring),
		media:       controller.NewMediaController(s.media, s.metadata),
		health:      controller.NewHealthController(a.DB, a.Redis, a.Backend),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS))
	router.Use(security.Secure())

	a.ipLimiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window(), security.ByClientIP)
	a.userLimiter = security.NewRateLimiter(cfg.RateLimit.AuthoringMaxRequests, cfg.RateLimit.Window(), security.ByUser)
	a.RegisterConfigCallback(func(c *config.Config) {
		a.ipLimiter.SetLimit(c.RateLimit.MaxRequests, c.RateLimit.Window())
		a.userLimiter.SetLimit(c.RateLimit.AuthoringMaxRequests, c.RateLimit.Window())
	})
	router.Use(a.ipLimiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully", zap.String("mode", cfg.Server.Mode))
	gin.SetMode(cfg.Server.Mode)

	app := &App{Config: cfg}
	app.RegisterConfigCallback(func(c *config.Config) {
		logger.SetMode(c.Server.Mode)
	})

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			// redis 只承载会话与缓存，不可用时退回内存实现
			logger.Log.Error("Failed to initialize redis, falling back to memory stores", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	app.Backend = app.initBackend(cfg)

	storage := service.NewStorageService(cfg)
	repos := app.initRepositories(app.Backend, storage)
	app.services = app.initServices(repos, storage, cfg)
	controllers := app.initControllers(repos, app.services)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-studio", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.ipLimiter.Stop()
	a.userLimiter.Stop()
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			logger.Log.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
}
