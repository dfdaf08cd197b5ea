package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/api"
	"github.com/qs3c/dieta_server/internal/api/handler"
	"github.com/qs3c/dieta_server/internal/app"
	"github.com/qs3c/dieta_server/internal/pkg/logger"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 初始化数据库、Redis 和服务
	a, err := app.New(cfg, lg)
	if err != nil {
		lg.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	// 初始化 Handler
	webhookHandler := handler.NewWebhookHandler(a.Fulfillment, lg)
	checkoutHandler := handler.NewCheckoutHandler(a.Checkout)
	profileHandler := handler.NewProfileHandler(a.Profile)
	generateHandler := handler.NewGenerateHandler(a.Fulfillment, lg)

	// 初始化 Router
	router := api.NewRouter(
		webhookHandler,
		checkoutHandler,
		profileHandler,
		generateHandler,
		cfg,
		lg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Setup(),
	}

	go func() {
		lg.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 等待进行中的履约完成，生成可能需要较长时间
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout()+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server shutdown failed", zap.Error(err))
	}
	lg.Info("server stopped")
}
