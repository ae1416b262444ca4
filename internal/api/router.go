package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/api/handler"
	"github.com/qs3c/ytd_go_server/internal/api/middleware"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/service"
)

type Router struct {
	authHandler         *handler.AuthHandler
	subscriptionHandler *handler.SubscriptionHandler
	quotaHandler        *handler.QuotaHandler
	adminHandler        *handler.AdminHandler
	tokenService        *service.TokenService
	userRepo            *repository.UserRepository
	cfg                 *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	quotaHandler *handler.QuotaHandler,
	adminHandler *handler.AdminHandler,
	tokenService *service.TokenService,
	userRepo *repository.UserRepository,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:         authHandler,
		subscriptionHandler: subscriptionHandler,
		quotaHandler:        quotaHandler,
		adminHandler:        adminHandler,
		tokenService:        tokenService,
		userRepo:            userRepo,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.Refresh)
		}

		// 需要认证的接口，写操作另过防伪造校验
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.tokenService, r.userRepo), middleware.CSRF())
		{
			authenticated.POST("/auth/logout", r.authHandler.Logout)

			subscription := authenticated.Group("/subscription")
			{
				subscription.GET("", r.subscriptionHandler.Status)
				subscription.PUT("", r.subscriptionHandler.Update)
				subscription.POST("/redeem", r.subscriptionHandler.Redeem)
			}

			quota := authenticated.Group("/quota")
			{
				quota.GET("", r.quotaHandler.GetUsage)
				quota.GET("/limits", r.quotaHandler.GetLimits)
				quota.POST("/consume", r.quotaHandler.Consume)
			}
		}

		// 管理接口
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.tokenService, r.userRepo), middleware.CSRF(), middleware.AdminOnly())
		{
			admin.GET("/plans", r.adminHandler.ListPlans)
			admin.DELETE("/plans/:id", r.adminHandler.DeletePlan)
			admin.POST("/promo-codes", r.adminHandler.CreatePromoCode)
			admin.POST("/users/:id/boost", r.adminHandler.GiveBoost)
		}
	}

	return engine
}
