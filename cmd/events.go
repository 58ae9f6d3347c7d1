/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/lib/logger"
	"github.com/bookingd/apiserver/internal/lib/sl"
	"github.com/bookingd/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// eventsCmd tails the domain event channel and logs every event. It is
// meant for checking a broker setup end to end.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail domain events from the configured broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.New(cfg.Env, cfg.LogLevel)

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_DRIVER is none; nothing to tail")
		}
		defer broker.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("tailing events", slog.String("driver", cfg.MQ.Driver), slog.String("channel", cfg.MQ.Channel))
		err = broker.Subscribe(ctx, cfg.MQ.Channel, logEvent(log))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func logEvent(log *slog.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		event, err := mq.DecodeEvent(msg)
		if err != nil {
			// malformed messages are dropped rather than redelivered forever
			log.Warn("skipping malformed event", slog.String("message_id", msg.ID), sl.Err(err))
			return nil
		}
		log.Info("event",
			slog.String("type", event.Type),
			slog.String("actor_id", event.ActorID),
			slog.String("subject_id", event.SubjectID),
			slog.Time("occurred_at", event.OccurredAt),
			slog.Any("payload", event.Payload),
		)
		return nil
	}
}
