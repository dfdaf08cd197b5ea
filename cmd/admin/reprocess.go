package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qs3c/dieta_server/internal/pkg/queue"
	"github.com/qs3c/dieta_server/internal/service"
)

type deadLetterSource interface {
	TryPop(ctx context.Context) (*queue.FulfillmentMessage, error)
	Length(ctx context.Context) (int64, error)
}

type reprocessor interface {
	Reprocess(ctx context.Context, msg *queue.FulfillmentMessage) (*service.Outcome, error)
}

func reprocessCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Re-run dead-lettered fulfillments once each",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ok, failed, err := reprocessQueue(cmd.Context(), a.DeadLetter, a.Fulfillment, limit, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reprocessed: %d ok, %d failed\n", ok, failed)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max entries to process (0 = entries queued at start)")
	return cmd
}

// reprocessQueue 依次取出死信并重放一次。失败的任务由编排器重新写回队尾，
// 所以默认只处理开始时已在队列中的条目。
func reprocessQueue(ctx context.Context, src deadLetterSource, r reprocessor, limit int, out io.Writer) (int, int, error) {
	if limit <= 0 {
		n, err := src.Length(ctx)
		if err != nil {
			return 0, 0, err
		}
		limit = int(n)
	}

	var ok, failed int
	for i := 0; i < limit; i++ {
		msg, err := src.TryPop(ctx)
		if err != nil {
			return ok, failed, err
		}
		if msg == nil {
			break
		}

		res, err := r.Reprocess(ctx, msg)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s event=%s stage=%s: %v\n", msg.Email, msg.EventID, msg.Stage, err)
			continue
		}
		ok++
		fmt.Fprintf(out, "OK   %s event=%s url=%s\n", msg.Email, msg.EventID, res.Link)
	}
	return ok, failed, nil
}
