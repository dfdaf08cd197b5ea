package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qs3c/dieta_server/internal/model"
)

func failedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List webhook events whose fulfillment failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.Events.ListFailed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT\tEMAIL\tSTAGE\tATTEMPTS\tPAID\tUPDATED\tERROR")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\t%s\n",
					ev.EventID, ev.Email, ev.LastStage, ev.Attempts, ev.PaymentRecorded,
					ev.UpdatedAt.Format("2006-01-02 15:04:05"), ev.LastError)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "max events to list")
	return cmd
}

func auditCmd() *cobra.Command {
	var (
		email string
		runID string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the fulfillment audit trail for an email or a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" && runID == "" {
				return errors.New("one of --email or --run is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []model.FulfillmentAudit
			if runID != "" {
				entries, err = a.Audits.ListByRun(cmd.Context(), runID)
			} else {
				entries, err = a.Audits.ListByEmail(cmd.Context(), model.NormalizeEmail(email), limit)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRUN\tEVENT\tSTAGE\tSTATUS\tDETAIL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.RunID, e.EventID, e.Stage, e.Status, e.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "customer email")
	cmd.Flags().StringVar(&runID, "run", "", "fulfillment run id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "max entries when listing by email")
	return cmd
}
