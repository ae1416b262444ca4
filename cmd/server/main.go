package main

import (
	"fmt"
	"log"
	"time"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/api"
	"github.com/qs3c/ytd_go_server/internal/api/handler"
	"github.com/qs3c/ytd_go_server/internal/database"
	"github.com/qs3c/ytd_go_server/internal/pkg/alarm"
	"github.com/qs3c/ytd_go_server/internal/pkg/audit"
	"github.com/qs3c/ytd_go_server/internal/pkg/counter"
	"github.com/qs3c/ytd_go_server/internal/pkg/cron"
	"github.com/qs3c/ytd_go_server/internal/pkg/ratelimit"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	planRepo := repository.NewPlanRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// 初始化 Service
	auditSvc := service.NewAuditService(
		auditRepo,
		audit.NewFallbackWriter(cfg.Audit.FallbackDir, cfg.Audit.FallbackSizeLimit),
		alarm.NewNotifier(&cfg.Alarm),
	)
	tokenSvc := service.NewTokenService(db, userRepo, sessionRepo, auditSvc, cfg)
	quotaSvc := service.NewQuotaService(userRepo, usageRepo, counter.NewStore(rdb), cfg)
	promoSvc := service.NewPromoService(db, promoRepo, userRepo, planRepo, auditSvc, cfg)
	planChangeLimiter := ratelimit.NewSlidingWindow(rdb,
		cfg.Subscription.PlanChange.Limit,
		time.Duration(cfg.Subscription.PlanChange.WindowSeconds)*time.Second)
	subscriptionSvc := service.NewSubscriptionService(userRepo, planRepo, promoSvc, planChangeLimiter, auditSvc, cfg)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(tokenSvc, cfg)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionSvc)
	quotaHandler := handler.NewQuotaHandler(quotaSvc)
	adminHandler := handler.NewAdminHandler(planRepo, promoRepo, userRepo)

	// 后台清理任务
	cronSvc := cron.NewService(sessionRepo, usageRepo, promoRepo, userRepo, cfg.Retention.UsageDays)
	cronSvc.Start()
	defer cronSvc.Stop()

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		subscriptionHandler,
		quotaHandler,
		adminHandler,
		tokenSvc,
		userRepo,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
