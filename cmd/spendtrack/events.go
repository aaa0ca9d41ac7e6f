package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect ledger change notifications",
	}
	cmd.AddCommand(watchEventsCmd())
	return cmd
}

func watchEventsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change notifications until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if appConfig.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPRoutingKey)
			if err != nil {
				return fmt.Errorf("failed to connect to broker: %w", err)
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			err = client.ConsumeChanges(cmd.Context(), func(ev core.ChangeEvent) error {
				if user != "" && ev.UserID != user {
					return nil
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d\n",
					ev.OccurredAt.Format(time.RFC3339), ev.Kind, ev.UserID, ev.EntityID)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only show events for this user id")
	return cmd
}
