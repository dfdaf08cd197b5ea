package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/dieta_server/internal/pkg/jwt"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		hours   int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a service token for the generate endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}
			if hours <= 0 {
				hours = cfg.JWT.ExpireHours
			}

			token, err := jwt.GenerateToken(subject, cfg.JWT.Secret, hours)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "caller name embedded in the token")
	cmd.Flags().IntVar(&hours, "hours", 0, "validity in hours (default jwt.expire_hours)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
