package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/api/handler"
	"github.com/qs3c/dieta_server/internal/api/middleware"
	"github.com/qs3c/dieta_server/internal/pkg/response"
)

type Router struct {
	webhookHandler  *handler.WebhookHandler
	checkoutHandler *handler.CheckoutHandler
	profileHandler  *handler.ProfileHandler
	generateHandler *handler.GenerateHandler
	cfg             *config.Config
	logger          *zap.Logger
}

func NewRouter(
	webhookHandler *handler.WebhookHandler,
	checkoutHandler *handler.CheckoutHandler,
	profileHandler *handler.ProfileHandler,
	generateHandler *handler.GenerateHandler,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		webhookHandler:  webhookHandler,
		checkoutHandler: checkoutHandler,
		profileHandler:  profileHandler,
		generateHandler: generateHandler,
		cfg:             cfg,
		logger:          logger,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLog(r.logger))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.NoMethod(response.MethodNotAllowed)
	engine.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "")
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	{
		// 支付回调，签名校验在 handler 中完成
		api.POST("/webhook/stripe", r.webhookHandler.Stripe)

		// 前端接口
		api.POST("/checkout", r.checkoutHandler.Create)
		api.POST("/profile", r.profileHandler.Register)

		// 服务间调用
		internal := api.Group("")
		internal.Use(middleware.ServiceAuth(r.cfg.JWT.Secret))
		{
			internal.POST("/generate", r.generateHandler.Generate)
		}
	}

	return engine
}
