package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
)

// NewKafkaClient creates a franz-go client producing to KafkaTopic by default.
// Side effects: the client connects lazily; Ping verifies at least one broker is reachable.
func (c *Config) NewKafkaClient(ctx context.Context) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(c.KafkaBrokers...),
		kgo.DefaultProduceTopic(c.KafkaTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging kafka: %w", err)
	}
	return client, nil
}

// NewRedisClient creates a go-redis client from REDIS_URL and pings it.
func (c *Config) NewRedisClient(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}
