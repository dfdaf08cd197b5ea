package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/app"
	"github.com/qs3c/dieta_server/internal/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "dieta-admin",
		Short:        "Operator tools for the diet plan fulfillment service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "config file")

	rootCmd.AddCommand(reprocessCmd())
	rootCmd.AddCommand(failedCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp 连接数据库和 Redis，调用方负责 Close
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, lg)
}
