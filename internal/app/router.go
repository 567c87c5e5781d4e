package app

import (
	"certprep_backend/internal/config"
	"certprep_backend/internal/middleware"

	"certprep_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)
		authGroup.PUT("/profile", c.user.UpdateProfile)
		authGroup.POST("/profile/avatar", c.user.UploadAvatar)

		authGroup.GET("/categories", c.category.ListCategories)

		authGroup.POST("/sessions", c.session.CreateSession)
		authGroup.GET("/sessions", c.session.ListSessions)
		authGroup.GET("/sessions/:id", c.session.GetSession)
		authGroup.POST("/sessions/:id/answers", c.session.SubmitAnswer)
		authGroup.POST("/sessions/:id/complete", c.session.CompleteSession)

		authGroup.GET("/progress", c.progress.GetProgress)
		authGroup.GET("/dashboard", c.dashboard.GetDashboard)
	}
}
