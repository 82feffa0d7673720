// Package publisher sends award events to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustline/internal/award/models"
	"trustline/pkg/platform/audit"
)

// KafkaPublisher produces one record per grant, keyed by user so a user's
// awards stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafka creates a publisher on an existing client.
func NewKafka(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

// Publish blocks until the broker acknowledges the record.
func (p *KafkaPublisher) Publish(ctx context.Context, grant models.Grant) error {
	value, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(grant.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(audit.EventPointsAwarded)},
			{Key: "category", Value: []byte(grant.Category)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce grant: %w", err)
	}
	return nil
}

// EnsureTopic creates topic unless it already exists.
func EnsureTopic(ctx context.Context, admin *kadm.Client, topic string, partitions int32, replicationFactor int16) error {
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
