package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardbank/internal/cards/domain"
	"cardbank/internal/common/metrics"
)

// DataStore implements domain.AtomicExecutor and domain.Repositories on PostgreSQL.
type DataStore struct {
	pool       *pgxpool.Pool
	cipher     *NumberCipher
	cardRepo   *CardRepository
	outboxRepo *OutboxRepository
}

// NewDataStore creates a new DataStore with the given connection pool.
func NewDataStore(pool *pgxpool.Pool, cipher *NumberCipher) *DataStore {
	return &DataStore{
		pool:       pool,
		cipher:     cipher,
		cardRepo:   NewCardRepository(pool, cipher),
		outboxRepo: NewOutboxRepository(pool),
	}
}

// Cards returns the card repository.
func (ds *DataStore) Cards() domain.CardRepository {
	return ds.cardRepo
}

// Outbox returns the outbox repository.
func (ds *DataStore) Outbox() domain.OutboxRepository {
	return ds.outboxRepo
}

// Ping checks that the database is reachable.
func (ds *DataStore) Ping(ctx context.Context) error {
	return ds.pool.Ping(ctx)
}

// withTx returns a DataStore whose repositories share tx.
func (ds *DataStore) withTx(tx pgx.Tx) *DataStore {
	return &DataStore{
		pool:       ds.pool,
		cipher:     ds.cipher,
		cardRepo:   NewCardRepository(tx, ds.cipher),
		outboxRepo: NewOutboxRepository(tx),
	}
}

// Atomic executes the callback within a database transaction.
// If the callback returns nil, the transaction is committed.
// If the callback returns an error or panics, the transaction is rolled back.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordTransactionDuration("cards", time.Since(start))
	}()

	tx, err := ds.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
			}
			return
		}
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	err = fn(ds.withTx(tx))
	return
}

var (
	_ domain.AtomicExecutor = (*DataStore)(nil)
	_ domain.Repositories   = (*DataStore)(nil)
)
