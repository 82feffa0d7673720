// Package kafka builds the franz-go producer and admin clients.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustline/internal/platform/config"
)

// Clients bundles the producer and its admin view.
type Clients struct {
	Producer *kgo.Client
	Admin    *kadm.Client
}

// New connects to the configured brokers. It returns nil, nil when none are
// configured.
func New(ctx context.Context, cfg config.Kafka) (*Clients, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Clients{Producer: client, Admin: kadm.NewClient(client)}, nil
}

// Close flushes pending records and closes the connection.
func (c *Clients) Close(ctx context.Context) {
	_ = c.Producer.Flush(ctx)
	c.Producer.Close()
}
