package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/dieta_server/internal/database"
	"github.com/qs3c/dieta_server/internal/pkg/pubsub"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream fulfillment progress events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rdb, err := database.NewRedis(&cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = pubsub.NewSubscriber(rdb).Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
				line := fmt.Sprintf("%s %-3d%% %-18s run=%s email=%s", msg.At.Format("15:04:05"), msg.Progress, msg.Step, msg.RunID, msg.Email)
				if msg.Error != "" {
					line += " error=" + msg.Error
				}
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
