package app

import (
	"certprep_backend/internal/config"
	"certprep_backend/internal/controller"
	"certprep_backend/internal/repository"
	"certprep_backend/internal/service"
	"certprep_backend/internal/util"
	"certprep_backend/pkg/database"
	"certprep_backend/pkg/logger"
	"certprep_backend/pkg/monitoring"
	"certprep_backend/pkg/security"
	"certprep_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	stopReconciler  chan struct{}
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	category *repository.CategoryRepository
	question *repository.QuestionRepository
	session  *repository.SessionRepository
	answer   *repository.AnswerRepository
	progress *repository.ProgressRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	user      *service.UserService
	bank      *service.QuestionBankService
	progress  *service.ProgressService
	session   *service.SessionService
	dashboard *service.DashboardService
}

type controllers struct {
	auth      *controller.AuthController
	user      *controller.UserController
	category  *controller.CategoryController
	session   *controller.SessionController
	progress  *controller.ProgressController
	dashboard *controller.DashboardController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 热更新配置，由配置文件监听器触发
func (a *App) ReloadConfig(newCfg *config.Config) {
	a.Config = newCfg
	for _, callback := range a.configCallbacks {
		callback(newCfg)
	}
	logger.Log.Info("Config reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		category: repository.NewCategoryRepository(db),
		question: repository.NewQuestionRepository(db),
		session:  repository.NewSessionRepository(db),
		answer:   repository.NewAnswerRepository(db),
		progress: repository.NewProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, s.storage)
	s.bank = service.NewQuestionBankService(
		repos.category,
		repos.question,
		rdb,
		time.Duration(cfg.Session.CategoryCacheSeconds)*time.Second,
	)
	s.progress = service.NewProgressService(repos.progress, service.SystemClock)
	s.session = service.NewSessionService(
		repos.session,
		repos.answer,
		repos.question,
		s.bank,
		service.NewGrader(nil),
		s.progress,
		service.SystemClock,
		cfg.Session.MaxQuestions,
	)
	s.dashboard = service.NewDashboardService(repos.user, repos.session, repos.progress)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		user:      controller.NewUserController(s.user),
		category:  controller.NewCategoryController(s.bank),
		session:   controller.NewSessionController(s.session),
		progress:  controller.NewProgressController(s.progress),
		dashboard: controller.NewDashboardController(s.dashboard),
		health:    controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 启动进度对账任务：把已完成但聚合失败的会话
// 周期性地重放进聚合流程
func (a *App) startBackgroundTasks(s *services) {
	a.stopReconciler = make(chan struct{})
	interval := time.Duration(a.Config.Session.ReconcileIntervalSecs) * time.Second

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.session.ReconcilePendingAggregations(50); err != nil {
					logger.Log.Error("progress reconciliation error", zap.Error(err))
				}
			case <-a.stopReconciler:
				return
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("certprep-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(c *config.Config) {
		services.session.MaxQuestions = c.Session.MaxQuestions
	})

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.stopReconciler != nil {
		close(a.stopReconciler)
	}

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
