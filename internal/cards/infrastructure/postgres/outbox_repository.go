package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"cardbank/internal/cards/domain"
	"cardbank/internal/common/events"
	vo "cardbank/internal/common/value_objects"
)

// OutboxRepository implements domain.OutboxRepository using PostgreSQL.
// Events are written in the same transaction as the card change and
// relayed to Kafka later.
type OutboxRepository struct {
	db Executor
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(db Executor) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Append adds an event to the outbox.
func (r *OutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cards.outbox (
			event_id, event_type, user_id, aggregate_id, correlation_id, payload, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID.String(),
		entry.EventType,
		entry.UserID.String(),
		entry.AggregateID,
		textFromString(entry.CorrelationID.String()),
		entry.Payload,
		entry.OccurredAt,
	)
	return err
}

// FetchUnpublished retrieves unpublished events in occurrence order.
// Rows are locked with FOR UPDATE SKIP LOCKED so concurrent relays
// never pick up the same event; call it inside Atomic.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, event_type, user_id, aggregate_id, correlation_id, payload, occurred_at, published_at
		FROM cards.outbox
		WHERE published_at IS NULL
		ORDER BY occurred_at, event_id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.OutboxEntry, 0, limit)
	for rows.Next() {
		var (
			eventID       string
			eventType     string
			userID        string
			aggregateID   string
			correlationID pgtype.Text
			payload       []byte
			occurredAt    time.Time
			publishedAt   pgtype.Timestamptz
		)
		if err := rows.Scan(&eventID, &eventType, &userID, &aggregateID, &correlationID, &payload, &occurredAt, &publishedAt); err != nil {
			return nil, err
		}

		id, err := events.ParseEventID(eventID)
		if err != nil {
			return nil, fmt.Errorf("%w: event id: %v", domain.ErrCorruptData, err)
		}
		owner, err := vo.ParseUserID(userID)
		if err != nil {
			return nil, fmt.Errorf("%w: user id: %v", domain.ErrCorruptData, err)
		}
		published, err := timestamptzToTimePtr(publishedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid published_at: %v", domain.ErrCorruptData, err)
		}
		var corrID vo.CorrelationID
		if correlationID.Valid {
			corrID, _ = vo.ParseCorrelationID(correlationID.String)
		}

		entries = append(entries, &domain.OutboxEntry{
			ID:            id,
			EventType:     eventType,
			UserID:        owner,
			AggregateID:   aggregateID,
			CorrelationID: corrID,
			Payload:       payload,
			OccurredAt:    occurredAt.UTC(),
			PublishedAt:   published,
		})
	}
	return entries, rows.Err()
}

// MarkPublished marks events as published.
// It is a no-op when the input list is empty.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []events.EventID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	stringIDs := make([]string, len(ids))
	for i, id := range ids {
		stringIDs[i] = id.String()
	}

	_, err := r.db.Exec(ctx,
		`UPDATE cards.outbox SET published_at = $1 WHERE event_id = ANY($2::uuid[])`,
		publishedAt, stringIDs,
	)
	return err
}

// CountUnpublished returns how many events are waiting to be relayed.
func (r *OutboxRepository) CountUnpublished(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cards.outbox WHERE published_at IS NULL`).Scan(&count)
	return count, err
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
