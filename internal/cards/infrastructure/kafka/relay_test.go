package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"cardbank/internal/cards/domain"
	"cardbank/internal/cards/infrastructure/kafka"
	"cardbank/internal/cards/infrastructure/memory"
	"cardbank/internal/common/events"
	vo "cardbank/internal/common/value_objects"
)

type fakeProducer struct {
	mu        sync.Mutex
	records   []*kgo.Record
	err       error
	onProduce func()
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	if p.onProduce != nil {
		p.onProduce()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func seedOutbox(t *testing.T, store *memory.DataStore, n int) *domain.Card {
	t.Helper()
	number, err := domain.ParseCardNumber("4532015112830366")
	require.NoError(t, err)
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	card, err := domain.NewCard(vo.NewUserID(), number, "Ana Gomez", now.AddDate(5, 0, 0), vo.MustNewFromInt(1000, "COP"), now)
	require.NoError(t, err)

	for range n {
		entry, err := domain.NewCardSnapshotOutboxEntry(domain.EventTypeCardIssued, card, vo.NewCorrelationID(), now)
		require.NoError(t, err)
		require.NoError(t, store.Outbox().Append(context.Background(), entry))
	}
	return card
}

func TestRelay_PublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDataStore()
	card := seedOutbox(t, store, 5)
	producer := &fakeProducer{}

	relay := kafka.NewRelay(store, producer, kafka.RelayConfig{Topic: "card-events", BatchSize: 2})

	published, err := relay.PublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, published)
	require.Len(t, producer.records, 5)

	pending, err := store.Outbox().CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	record := producer.records[0]
	assert.Equal(t, "card-events", record.Topic)
	assert.Equal(t, card.ID().String(), string(record.Key))

	var envelope events.EventEnvelope
	require.NoError(t, json.Unmarshal(record.Value, &envelope))
	assert.Equal(t, domain.EventTypeCardIssued, envelope.EventType)
	assert.Equal(t, card.ID().String(), envelope.AggregateID)

	var body domain.CardSnapshotEvent
	require.NoError(t, envelope.UnmarshalPayload(&body))
	assert.Equal(t, card.Number().Masked(), body.MaskedNumber)

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, envelope.EventID.String(), headers["event_id"])
	assert.Equal(t, domain.EventTypeCardIssued, headers["event_type"])
	assert.NotEmpty(t, headers["correlation_id"])
}

func TestRelay_ProduceFailureLeavesEntriesPending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDataStore()
	seedOutbox(t, store, 3)
	producer := &fakeProducer{err: errors.New("broker unavailable")}

	relay := kafka.NewRelay(store, producer, kafka.RelayConfig{Topic: "card-events", BatchSize: 10})

	published, err := relay.PublishPending(ctx)
	require.Error(t, err)
	assert.Zero(t, published)

	pending, err := store.Outbox().CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	producer.err = nil
	published, err = relay.PublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, published)
}

func TestRelay_StoreUsableWhileProducing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDataStore()
	seedOutbox(t, store, 2)

	var pendingDuringProduce int
	producer := &fakeProducer{}
	producer.onProduce = func() {
		n, err := store.Outbox().CountUnpublished(ctx)
		assert.NoError(t, err)
		pendingDuringProduce = n
	}
	relay := kafka.NewRelay(store, producer, kafka.RelayConfig{Topic: "card-events", BatchSize: 10})

	done := make(chan error, 1)
	go func() {
		_, err := relay.PublishPending(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("store was locked while producing")
	}
	assert.Equal(t, 2, pendingDuringProduce)

	pending, err := store.Outbox().CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRelay_EmptyOutbox(t *testing.T) {
	relay := kafka.NewRelay(memory.NewDataStore(), &fakeProducer{}, kafka.RelayConfig{Topic: "card-events"})

	published, err := relay.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	store := memory.NewDataStore()
	seedOutbox(t, store, 1)
	producer := &fakeProducer{}
	relay := kafka.NewRelay(store, producer, kafka.RelayConfig{Topic: "card-events", PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		producer.mu.Lock()
		defer producer.mu.Unlock()
		return len(producer.records) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
