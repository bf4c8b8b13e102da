package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/handler"
	"sudooom.im.chat/internal/health"
	"sudooom.im.chat/internal/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Auth    *handler.AuthHandler
	Message *handler.MessageHandler
	Group   *handler.GroupHandler
	Socket  *handler.SocketHandler
	Health  *health.Checker
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, auth middleware.Authenticator, h Handlers) *gin.Engine {
	gin.SetMode(cfg.App.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowCredentials,
	))

	// 运维接口
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if h.Health != nil {
		r.GET("/health", h.Health.Live)
		r.GET("/ready", h.Health.Ready)
	}
	r.Static("/uploads", cfg.Upload.Dir)

	// 推送通道，会话可选
	r.GET("/ws", h.Socket.Serve)

	protect := middleware.ProtectRoute(auth, cfg.JWT.CookieName)
	limit := func(endpoint string) gin.HandlerFunc {
		if !cfg.RateLimit.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(endpoint, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", limit("signup"), h.Auth.Signup)
			authGroup.POST("/login", limit("login"), h.Auth.Login)
			authGroup.POST("/logout", h.Auth.Logout)
			authGroup.PUT("/update-profile", protect, h.Auth.UpdateProfile)
			authGroup.GET("/check", protect, h.Auth.Check)
			authGroup.POST("/forgot-password", limit("forgot_password"), h.Auth.ForgotPassword)
			authGroup.POST("/reset-password/:token", limit("reset_password"), h.Auth.ResetPassword)
		}

		messages := api.Group("/messages", protect)
		{
			messages.GET("/users", h.Message.Sidebar)
			messages.GET("/:id", h.Message.List)
			messages.POST("/send/:id", h.Message.Send)
			messages.PUT("/seen/:id", h.Message.MarkSeen)
			messages.DELETE("/chat/:id", h.Message.Clear)
			messages.PATCH("/:id", h.Message.Edit)
			messages.DELETE("/:id", h.Message.Delete)
		}

		groups := api.Group("/groups", protect)
		{
			groups.POST("", h.Group.Create)
			groups.GET("", h.Group.List)
			groups.GET("/:groupId/messages", h.Group.Messages)
			groups.POST("/:groupId/messages", h.Group.Send)
			groups.DELETE("/:groupId/messages", h.Group.ClearMessages)
			groups.POST("/:groupId/leave", h.Group.Leave)
			groups.DELETE("/:groupId", h.Group.Delete)
			groups.DELETE("/:groupId/members/:memberId", h.Group.RemoveMember)
		}
	}

	return r
}
