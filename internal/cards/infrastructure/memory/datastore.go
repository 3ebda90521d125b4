package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"cardbank/internal/cards/domain"
	"cardbank/internal/common/events"
	vo "cardbank/internal/common/value_objects"
)

// DataStore implements domain.AtomicExecutor and domain.Repositories in memory.
// Cards are copied on the way in and out, so a callback that fails after
// mutating a loaded card leaves the committed state untouched.
// Concurrency: all access is serialized by a mutex. Callbacks passed to Atomic
// must use the repositories they are given, not the DataStore itself.
type DataStore struct {
	mu     sync.Mutex
	cards  map[string]*domain.Card
	outbox []*domain.OutboxEntry

	cardRepo   *CardRepository
	outboxRepo *OutboxRepository
}

// NewDataStore creates an empty in-memory DataStore.
func NewDataStore() *DataStore {
	ds := &DataStore{
		cards:  make(map[string]*domain.Card),
		outbox: make([]*domain.OutboxEntry, 0),
	}
	ds.cardRepo = &CardRepository{store: ds}
	ds.outboxRepo = &OutboxRepository{store: ds}
	return ds
}

// Cards returns an auto-commit card repository.
func (ds *DataStore) Cards() domain.CardRepository {
	return ds.cardRepo
}

// Outbox returns an auto-commit outbox repository.
func (ds *DataStore) Outbox() domain.OutboxRepository {
	return ds.outboxRepo
}

// Atomic runs fn against staged copies and commits them only if fn succeeds.
// Concurrency: the store is locked for the duration of the callback.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	tx := &transaction{
		parent:      ds,
		stagedCards: make(map[string]*domain.Card),
		published:   make(map[string]time.Time),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for k, v := range tx.stagedCards {
		ds.cards[k] = v
	}
	for _, entry := range ds.outbox {
		if at, ok := tx.published[entry.ID.String()]; ok {
			entry.PublishedAt = &at
		}
	}
	ds.outbox = append(ds.outbox, tx.stagedOutbox...)
	return nil
}

// transaction holds the writes of one Atomic call.
type transaction struct {
	parent       *DataStore
	stagedCards  map[string]*domain.Card
	stagedOutbox []*domain.OutboxEntry
	published    map[string]time.Time
}

func (tx *transaction) Cards() domain.CardRepository {
	return &txCardRepository{tx: tx}
}

func (tx *transaction) Outbox() domain.OutboxRepository {
	return &txOutboxRepository{tx: tx}
}

func (tx *transaction) card(id string) (*domain.Card, bool) {
	if card, ok := tx.stagedCards[id]; ok {
		return card, true
	}
	card, ok := tx.parent.cards[id]
	return card, ok
}

// visibleCards returns committed cards overlaid with staged ones.
func (tx *transaction) visibleCards() []*domain.Card {
	merged := make(map[string]*domain.Card, len(tx.parent.cards)+len(tx.stagedCards))
	for k, v := range tx.parent.cards {
		merged[k] = v
	}
	for k, v := range tx.stagedCards {
		merged[k] = v
	}
	cards := make([]*domain.Card, 0, len(merged))
	for _, card := range merged {
		cards = append(cards, card)
	}
	return cards
}

type txCardRepository struct {
	tx *transaction
}

func (r *txCardRepository) FindByID(ctx context.Context, id domain.CardID) (*domain.Card, error) {
	if card, ok := r.tx.card(id.String()); ok {
		return cloneCard(card), nil
	}
	return nil, domain.ErrCardNotFound
}

func (r *txCardRepository) FindByNumber(ctx context.Context, number domain.CardNumber) (*domain.Card, error) {
	for _, card := range r.tx.visibleCards() {
		if card.Number() == number {
			return cloneCard(card), nil
		}
	}
	return nil, domain.ErrCardNotFound
}

func (r *txCardRepository) FindByUser(ctx context.Context, userID vo.UserID) ([]*domain.Card, error) {
	var owned []*domain.Card
	for _, card := range r.tx.visibleCards() {
		if card.UserID() == userID {
			owned = append(owned, cloneCard(card))
		}
	}
	slices.SortFunc(owned, func(a, b *domain.Card) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return owned, nil
}

func (r *txCardRepository) ExistsByNumber(ctx context.Context, number domain.CardNumber) (bool, error) {
	for _, card := range r.tx.visibleCards() {
		if card.Number() == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *txCardRepository) Insert(ctx context.Context, card *domain.Card) error {
	if exists, _ := r.ExistsByNumber(ctx, card.Number()); exists {
		return domain.ErrDuplicateCardNumber
	}
	r.tx.stagedCards[card.ID().String()] = cloneCard(card)
	return nil
}

func (r *txCardRepository) Update(ctx context.Context, card *domain.Card) error {
	stored, ok := r.tx.card(card.ID().String())
	if !ok {
		return domain.ErrCardNotFound
	}
	if stored.Version() != card.Version() {
		return domain.ErrOptimisticLock
	}
	card.AdvanceVersion()
	r.tx.stagedCards[card.ID().String()] = cloneCard(card)
	return nil
}

type txOutboxRepository struct {
	tx *transaction
}

func (r *txOutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	staged := *entry
	r.tx.stagedOutbox = append(r.tx.stagedOutbox, &staged)
	return nil
}

func (r *txOutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry
	for _, entry := range r.tx.parent.outbox {
		if len(entries) >= limit {
			break
		}
		if entry.PublishedAt != nil {
			continue
		}
		if _, marked := r.tx.published[entry.ID.String()]; marked {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries, nil
}

func (r *txOutboxRepository) MarkPublished(ctx context.Context, ids []events.EventID, publishedAt time.Time) error {
	for _, id := range ids {
		r.tx.published[id.String()] = publishedAt
	}
	return nil
}

func (r *txOutboxRepository) CountUnpublished(ctx context.Context) (int, error) {
	count := 0
	for _, entry := range r.tx.parent.outbox {
		if entry.PublishedAt == nil {
			count++
		}
	}
	return count, nil
}

// CardRepository gives auto-commit access to in-memory cards.
// Each call runs in its own Atomic unit.
type CardRepository struct {
	store *DataStore
}

// FindByID loads a card by ID. Returns ErrCardNotFound when missing.
func (r *CardRepository) FindByID(ctx context.Context, id domain.CardID) (card *domain.Card, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		card, err = repos.Cards().FindByID(ctx, id)
		return err
	})
	return card, err
}

// FindByNumber loads a card by number. Returns ErrCardNotFound when missing.
func (r *CardRepository) FindByNumber(ctx context.Context, number domain.CardNumber) (card *domain.Card, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		card, err = repos.Cards().FindByNumber(ctx, number)
		return err
	})
	return card, err
}

// FindByUser returns the user's cards, oldest first.
func (r *CardRepository) FindByUser(ctx context.Context, userID vo.UserID) (cards []*domain.Card, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		cards, err = repos.Cards().FindByUser(ctx, userID)
		return err
	})
	return cards, err
}

// ExistsByNumber reports whether any card uses the number.
func (r *CardRepository) ExistsByNumber(ctx context.Context, number domain.CardNumber) (exists bool, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		exists, err = repos.Cards().ExistsByNumber(ctx, number)
		return err
	})
	return exists, err
}

// Insert stores a new card.
func (r *CardRepository) Insert(ctx context.Context, card *domain.Card) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Cards().Insert(ctx, card)
	})
}

// Update stores changes to an existing card.
func (r *CardRepository) Update(ctx context.Context, card *domain.Card) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Cards().Update(ctx, card)
	})
}

// OutboxRepository gives auto-commit access to the in-memory outbox.
type OutboxRepository struct {
	store *DataStore
}

// Append adds an event to the outbox.
func (r *OutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().Append(ctx, entry)
	})
}

// FetchUnpublished returns unpublished events in insertion order, up to limit.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) (entries []*domain.OutboxEntry, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		entries, err = repos.Outbox().FetchUnpublished(ctx, limit)
		return err
	})
	return entries, err
}

// MarkPublished sets PublishedAt for the given events.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []events.EventID, publishedAt time.Time) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().MarkPublished(ctx, ids, publishedAt)
	})
}

// CountUnpublished returns how many events are waiting to be relayed.
func (r *OutboxRepository) CountUnpublished(ctx context.Context) (count int, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		count, err = repos.Outbox().CountUnpublished(ctx)
		return err
	})
	return count, err
}

func cloneCard(card *domain.Card) *domain.Card {
	clone := *card
	return &clone
}

// Verify interface implementations
var (
	_ domain.AtomicExecutor = (*DataStore)(nil)
	_ domain.Repositories   = (*DataStore)(nil)
)
