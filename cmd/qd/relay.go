package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfredjeanlab/quadrant/internal/backend/postgres"
	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/alfredjeanlab/quadrant/internal/events"
	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/spf13/cobra"
)

var relayTo string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Republish database changes on a message bus",
	Long: `Listens to the Postgres change notifications of every user and republishes
each change on the bus topic of its owner, so that clients configured with
QUADRANT_FEED=nats or QUADRANT_FEED=redis receive them without a database
connection.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("QUADRANT_DATABASE_URL is required for the relay")
		}
		pub, topic, err := relayPublisher(cfg, relayTo)
		if err != nil {
			return err
		}
		defer pub.Close()

		source, err := postgres.NewFeed(cfg.DatabaseURL, "", logger)
		if err != nil {
			return fmt.Errorf("listen postgres: %w", err)
		}
		defer source.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return events.NewRelay(source, pub, topic, logger).Run(ctx)
	},
}

// relayPublisher returns the publisher for the named bus and its topic
// scheme.
func relayPublisher(c *config.Config, bus string) (events.Publisher, func(string, model.Table) string, error) {
	switch bus {
	case config.FeedNATS:
		if c.NATSURL == "" {
			return nil, nil, errors.New("QUADRANT_NATS_URL is required to relay to nats")
		}
		pub, err := events.NewNATSPublisher(c.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		return pub, events.Subject, nil
	case config.FeedRedis:
		if c.RedisURL == "" {
			return nil, nil, errors.New("QUADRANT_REDIS_URL is required to relay to redis")
		}
		client, err := events.NewRedisClient(c.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return events.NewRedisPublisher(client), events.RedisChannel, nil
	case config.FeedNone:
		return &events.NoopPublisher{}, events.Subject, nil
	}
	return nil, nil, fmt.Errorf("unknown bus %q (use nats, redis or none)", bus)
}

func init() {
	relayCmd.Flags().StringVar(&relayTo, "to", config.FeedNATS, "bus to publish on: nats, redis or none")
}
