package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"cardbank/internal/cards/domain"
	"cardbank/internal/common/events"
	"cardbank/internal/common/logging"
	"cardbank/internal/common/metrics"
)

// Producer is the part of *kgo.Client the relay needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store is the outbox side of a card data store.
type Store interface {
	domain.AtomicExecutor
	domain.Repositories
}

// RelayConfig controls batching and polling.
type RelayConfig struct {
	Topic        string
	BatchSize    int
	PollInterval time.Duration
}

// Relay publishes outbox entries to Kafka.
// A batch is fetched in one Atomic call, produced, then marked published in a second,
// so a failed produce leaves every entry of the batch pending for the next tick.
// Delivery is at-least-once; consumers deduplicate on event_id.
type Relay struct {
	store    Store
	producer Producer
	cfg      RelayConfig
	now      func() time.Time
}

// NewRelay creates a Relay.
func NewRelay(store Store, producer Producer, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Relay{
		store:    store,
		producer: producer,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	logging.Info("Outbox relay started", "topic", r.cfg.Topic, "interval", r.cfg.PollInterval.String())
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.PublishPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Outbox relay failed", "error", err)
			}
		}
	}
}

// PublishPending relays full batches until the outbox is drained and
// returns the number of events published.
func (r *Relay) PublishPending(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.publishBatch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.cfg.BatchSize {
			break
		}
	}

	pending, err := r.store.Outbox().CountUnpublished(ctx)
	if err != nil {
		return total, err
	}
	metrics.SetOutboxPending(pending)
	if pending == 0 {
		metrics.SetOutboxOldestAge(0)
	}
	return total, nil
}

func (r *Relay) publishBatch(ctx context.Context) (int, error) {
	var entries []*domain.OutboxEntry
	err := r.store.Atomic(ctx, func(repos domain.Repositories) error {
		var err error
		entries, err = repos.Outbox().FetchUnpublished(ctx, r.cfg.BatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	metrics.SetOutboxOldestAge(r.now().Sub(entries[0].OccurredAt))

	records := make([]*kgo.Record, 0, len(entries))
	ids := make([]events.EventID, 0, len(entries))
	for _, entry := range entries {
		record, err := r.toRecord(entry)
		if err != nil {
			return 0, err
		}
		records = append(records, record)
		ids = append(ids, entry.ID)
	}

	// No store lock is held while waiting on the broker.
	if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return 0, fmt.Errorf("producing to %s: %w", r.cfg.Topic, err)
	}

	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().MarkPublished(ctx, ids, r.now())
	})
	if err != nil {
		return 0, err
	}

	logging.Debug("Relayed outbox batch", "count", len(entries), "topic", r.cfg.Topic)
	return len(entries), nil
}

// toRecord wraps an entry in an EventEnvelope keyed by card id,
// which keeps every event of one card on one partition in order.
func (r *Relay) toRecord(entry *domain.OutboxEntry) (*kgo.Record, error) {
	value, err := json.Marshal(events.EventEnvelope{
		EventID:       entry.ID,
		EventType:     entry.EventType,
		OccurredAt:    entry.OccurredAt,
		UserID:        entry.UserID.String(),
		AggregateID:   entry.AggregateID,
		CorrelationID: entry.CorrelationID.String(),
		Payload:       json.RawMessage(entry.Payload),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", entry.ID, err)
	}

	headers := []kgo.RecordHeader{
		{Key: "event_id", Value: []byte(entry.ID.String())},
		{Key: "event_type", Value: []byte(entry.EventType)},
	}
	if !entry.CorrelationID.IsEmpty() {
		headers = append(headers, kgo.RecordHeader{Key: "correlation_id", Value: []byte(entry.CorrelationID.String())})
	}

	return &kgo.Record{
		Topic:     r.cfg.Topic,
		Key:       []byte(entry.AggregateID),
		Value:     value,
		Headers:   headers,
		Timestamp: entry.OccurredAt,
	}, nil
}

// EnsureTopic creates the event topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("creating topic %s: %w", topic, err)
	}
	return nil
}
