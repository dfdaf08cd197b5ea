package app

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/database"
	"github.com/qs3c/dieta_server/internal/pkg/llm"
	"github.com/qs3c/dieta_server/internal/pkg/oss"
	"github.com/qs3c/dieta_server/internal/pkg/pdf"
	"github.com/qs3c/dieta_server/internal/pkg/pubsub"
	"github.com/qs3c/dieta_server/internal/pkg/queue"
	"github.com/qs3c/dieta_server/internal/repository"
	"github.com/qs3c/dieta_server/internal/service"
)

// App 服务进程和运维命令共用的组件
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	Renderer   *pdf.Renderer
	DeadLetter *queue.Queue
	Events     *repository.WebhookEventRepository
	Profiles   *repository.ProfileRepository
	Audits     *repository.AuditRepository

	Fulfillment *service.FulfillmentService
	Checkout    *service.CheckoutService
	Profile     *service.ProfileService
}

// New 连接数据库和 Redis 并组装服务
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("redis connected")

	return Wire(cfg, logger, db, rdb)
}

// Wire 基于已有连接组装服务
func Wire(cfg *config.Config, logger *zap.Logger, db *gorm.DB, rdb *redis.Client) (*App, error) {
	renderer, err := pdf.NewRenderer(cfg.Render)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	var publisher service.Publisher
	if cfg.OSS.OSSEnabled() {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			return nil, err
		}
		publisher = ossClient
		logger.Info("artifact publisher: oss", zap.String("bucket", cfg.OSS.BucketName), zap.Bool("private", cfg.OSS.Private()))
	} else {
		publisher = oss.NewLocalStore(cfg.OSS.LocalDir, cfg.OSS.Prefix)
		logger.Warn("oss not configured, storing artifacts locally", zap.String("dir", cfg.OSS.LocalDir))
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Redis:      rdb,
		Renderer:   renderer,
		DeadLetter: queue.NewQueue(rdb, cfg.Queue.DeadLetterQueue),
		Events:     repository.NewWebhookEventRepository(db),
		Profiles:   repository.NewProfileRepository(db),
		Audits:     repository.NewAuditRepository(db),
	}

	plans := service.NewPlanTable(cfg.Stripe.Plans)
	a.Fulfillment = service.NewFulfillmentService(service.FulfillmentDeps{
		Verifier:   service.NewVerifier(cfg.Stripe.WebhookSecret, plans),
		Events:     a.Events,
		Profiles:   a.Profiles,
		Audits:     a.Audits,
		Resolver:   service.NewResolver(a.Profiles, cfg.Profile),
		Generator:  service.NewGenerator(llm.NewClient(cfg.LLM)),
		Renderer:   renderer,
		Publisher:  publisher,
		Progress:   pubsub.NewPublisher(rdb),
		DeadLetter: a.DeadLetter,
		Config:     cfg,
		Logger:     logger,
	})

	stripeAPI := client.New(cfg.Stripe.SecretKey, nil)
	a.Checkout = service.NewCheckoutService(stripeAPI.CheckoutSessions, plans, a.Profiles, &cfg.Stripe, logger)
	a.Profile = service.NewProfileService(a.Profiles)
	return a, nil
}

// Close 释放连接并清理渲染临时目录
func (a *App) Close() {
	if err := a.Renderer.Close(); err != nil {
		a.Logger.Warn("remove render dir failed", zap.String("dir", a.Renderer.Dir()), zap.Error(err))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	a.Redis.Close()
	_ = a.Logger.Sync()
}
