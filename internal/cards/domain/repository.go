package domain

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"
	"time"

	"cardbank/internal/common/events"
	vo "cardbank/internal/common/value_objects"
)

// CardRepository defines the interface for card persistence.
type CardRepository interface {
	// FindByID retrieves a card by ID.
	// Returns ErrCardNotFound when no record exists.
	FindByID(ctx context.Context, id CardID) (*Card, error)
	// FindByNumber retrieves a card by its number.
	// Returns ErrCardNotFound when no record exists.
	FindByNumber(ctx context.Context, number CardNumber) (*Card, error)
	// FindByUser returns all cards owned by the user, oldest first.
	FindByUser(ctx context.Context, userID vo.UserID) ([]*Card, error)
	// ExistsByNumber reports whether any card already uses the number.
	ExistsByNumber(ctx context.Context, number CardNumber) (bool, error)
	// Insert stores a new card.
	// Returns ErrDuplicateCardNumber if the number is already taken.
	Insert(ctx context.Context, card *Card) error
	// Update stores changes to an existing card.
	// Implementations return ErrOptimisticLock if the stored version moved on,
	// and ErrCardNotFound if the card does not exist.
	Update(ctx context.Context, card *Card) error
}

// Repositories provides access to all repositories within a transaction.
// This is used with the Atomic pattern to ensure all operations share the same transaction.
type Repositories interface {
	Cards() CardRepository
	Outbox() OutboxRepository
}

// AtomicCallback is the function signature for atomic operations.
// Any error returned will cause the transaction to be rolled back.
type AtomicCallback func(repos Repositories) error

// AtomicExecutor runs a set of repository calls as one unit of work.
// Commits and rollbacks are left to the implementation.
//
// Example usage:
//
//	err := executor.Atomic(ctx, func(repos Repositories) error {
//	    card, err := repos.Cards().FindByID(ctx, id)
//	    if err != nil {
//	        return err
//	    }
//	    if err := card.Block(now); err != nil {
//	        return err
//	    }
//	    return repos.Cards().Update(ctx, card)
//	})
type AtomicExecutor interface {
	// Atomic executes the callback within a transaction.
	// If the callback returns nil, the transaction is committed.
	// If the callback returns an error, the transaction is rolled back.
	Atomic(ctx context.Context, fn AtomicCallback) error
}

// OutboxEntry represents a domain event waiting to be published.
type OutboxEntry struct {
	ID            events.EventID
	EventType     string
	UserID        vo.UserID
	AggregateID   string
	CorrelationID vo.CorrelationID
	Payload       []byte
	OccurredAt    time.Time
	PublishedAt   *time.Time
}

// OutboxRepository defines the interface for the outbox pattern.
// Events are written to the outbox within the same transaction as the card changes,
// then published asynchronously by the outbox relay.
type OutboxRepository interface {
	// Append adds an event to the outbox.
	Append(ctx context.Context, entry *OutboxEntry) error
	// FetchUnpublished retrieves unpublished events in occurrence order.
	FetchUnpublished(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// MarkPublished marks events as published.
	MarkPublished(ctx context.Context, ids []events.EventID, publishedAt time.Time) error
	// CountUnpublished returns the number of events still waiting to be relayed.
	CountUnpublished(ctx context.Context) (int, error)
}
