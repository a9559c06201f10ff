package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/health"
	"tempmail/inbox/internal/middleware"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	Registry      *service.Registry
	Authenticator *service.Authenticator
	Inbox         *service.InboxService
	Health        *health.Checker
	Metrics       *monitoring.Metrics
	RateLimiter   *middleware.RateLimiter // 为 nil 时不限流
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.HTTPMetrics())
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		registry: deps.Registry,
		inbox:    deps.Inbox,
		health:   deps.Health,
		log:      log,
	}
	inboxAuth := middleware.NewInboxAuth(deps.Authenticator, log)

	// 运维端点
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handler.healthStatus)
		v1.GET("/domains", handler.listDomains)

		create := []gin.HandlerFunc{handler.createAddress}
		if deps.RateLimiter != nil {
			create = append([]gin.HandlerFunc{deps.RateLimiter.Limit("create_address")}, create...)
		}
		v1.POST("/addresses", create...)

		// ========== Inbox Routes（需要访问令牌） ==========
		inbox := v1.Group("/:token", inboxAuth.RequireToken())
		{
			inbox.GET("", handler.addressInfo)
			inbox.GET("/emails", handler.listEmails)
			inbox.GET("/emails/:emailId", handler.getEmail)
			inbox.DELETE("/emails/:emailId", handler.deleteEmail)
			inbox.GET("/emails/:emailId/raw", handler.downloadRaw)
			inbox.GET("/emails/:emailId/attachments/:attachmentId", handler.downloadAttachment)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, MsgNotFound)
	})

	return router
}
