package app

import (
	"course_studio_backend/docs"
	"course_studio_backend/internal/config"
	"course_studio_backend/internal/middleware"
	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 会话 cookie(无需登录)
	a.registerSessionRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, a.services.tokens))
	{
		a.registerLearnerRoutes(authGroup, c)

		// 课程编辑：作者与管理员
		a.registerAuthoringRoutes(authGroup, c)

		// 管理员接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerSessionRoutes(router *gin.Engine, c *controllers) {
	session := router.Group("/api/session")
	{
		session.POST("", c.session.StoreToken)
		session.GET("", c.session.GetToken)
		session.DELETE("", c.session.ClearToken)
		session.POST("/pending-email", c.session.StorePendingEmail)
		session.GET("/pending-email", c.session.GetPendingEmail)
		session.DELETE("/pending-email", c.session.ClearPendingEmail)
	}
}

func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	// 测验
	rg.POST("/quiz-attempts/submit", c.attempt.Submit)
	rg.POST("/quiz-attempts", c.attempt.Create)
	rg.GET("/quiz-attempts", c.attempt.List)
	rg.GET("/quiz-attempts/:id", c.attempt.Get)

	// 证书
	rg.GET("/certificate-issuances", c.certificate.List)
	rg.GET("/certificate-issuances/:id", c.certificate.Get)
}

func (a *App) registerAuthoringRoutes(rg *gin.RouterGroup, c *controllers) {
	authoring := rg.Group("/authoring")
	authoring.Use(middleware.RoleMiddleware(model.RoleAuthor), a.userLimiter.Middleware())
	{
		authoring.POST("/media", c.media.Upload)
		authoring.GET("/url-metadata", c.media.URLMetadata)

		course := authoring.Group("/courses/:course", c.authoring.RequireCourseOwner)
		course.POST("/open", c.authoring.Open)
		course.GET("/session", c.authoring.Session)
		course.DELETE("/session", c.authoring.Close)
		course.PUT("/basics", c.authoring.UpdateBasics)
		course.POST("/materials", c.authoring.AddMaterial)
		course.POST("/materials/reorder", c.authoring.ReorderMaterials)
		course.POST("/materials/:material/contents", c.authoring.AddContent)
		course.POST("/materials/:material/contents/reorder", c.authoring.ReorderContents)
		course.POST("/contents/:content/move", c.authoring.MoveContent)
		course.POST("/contents/:content/copyright-check", c.authoring.CopyrightCheck)
		course.POST("/pending/:local/retry", c.authoring.RetryContent)
		course.POST("/publish", c.authoring.Publish)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("")
	admin.Use(middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.PUT("/quiz-attempts/:id", c.attempt.Update)
		admin.DELETE("/quiz-attempts/:id", c.attempt.Delete)

		admin.POST("/quiz-attempt-answers", c.answer.Create)
		admin.GET("/quiz-attempt-answers", c.answer.List)
		admin.GET("/quiz-attempt-answers/:id", c.answer.Get)
		admin.PUT("/quiz-attempt-answers/:id", c.answer.Update)
		admin.DELETE("/quiz-attempt-answers/:id", c.answer.Delete)

		admin.POST("/certificate-issuances", c.certificate.Create)
		admin.PUT("/certificate-issuances/:id", c.certificate.Update)
		admin.POST("/certificate-issuances/:id/revoke", c.certificate.Revoke)
		admin.DELETE("/certificate-issuances/:id", c.certificate.Delete)
	}
}
