package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	cards "cardbank/internal/cards/domain"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/domain"
)

const idempotencyIndex = "idx_payments_idempotency"

// Executor is the query surface shared by *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PaymentRepository stores payments in payments.payments.
type PaymentRepository struct {
	db Executor
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db Executor) *PaymentRepository {
	return &PaymentRepository{db: db}
}

var _ domain.PaymentRepository = (*PaymentRepository)(nil)

const selectPayment = `
	SELECT id, user_id, card_id, amount::text, currency, description, status,
	       failure_reason, idempotency_key, created_at, updated_at
	FROM payments.payments`

func (r *PaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments.payments (
			id, user_id, card_id, amount, currency, description, status,
			failure_reason, idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)`,
		payment.ID().String(),
		payment.UserID().String(),
		payment.CardID().String(),
		payment.Amount().Amount().String(),
		payment.Amount().Currency().String(),
		payment.Description(),
		string(payment.Status()),
		payment.FailureReason(),
		pgtype.Text{String: payment.IdempotencyKey(), Valid: payment.IdempotencyKey() != ""},
		payment.CreatedAt(),
		payment.UpdatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == idempotencyIndex {
			return domain.ErrDuplicatePayment
		}
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id domain.PaymentID) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, selectPayment+` WHERE id = $1`, id.String())
	return scanPayment(row)
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, userID vo.UserID, key string) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, selectPayment+` WHERE user_id = $1 AND idempotency_key = $2`, userID.String(), key)
	return scanPayment(row)
}

func (r *PaymentRepository) FindByUser(ctx context.Context, userID vo.UserID) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx, selectPayment+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		id, userID, cardID, amount, currency string
		description, status, failureReason   string
		idempotencyKey                       pgtype.Text
		createdAt, updatedAt                 time.Time
	)
	err := row.Scan(&id, &userID, &cardID, &amount, &currency, &description, &status,
		&failureReason, &idempotencyKey, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning payment: %w", err)
	}

	paymentID, err := domain.ParsePaymentID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cards.ErrCorruptData, err)
	}
	owner, err := vo.ParseUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cards.ErrCorruptData, err)
	}
	card, err := cards.ParseCardID(cardID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cards.ErrCorruptData, err)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", cards.ErrCorruptData, amount)
	}
	money, err := vo.New(value, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cards.ErrCorruptData, err)
	}
	paymentStatus, ok := domain.ParsePaymentStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: status %q", cards.ErrCorruptData, status)
	}

	return domain.ReconstructPayment(
		paymentID,
		owner,
		card,
		money,
		description,
		paymentStatus,
		failureReason,
		idempotencyKey.String,
		createdAt.UTC(),
		updatedAt.UTC(),
	), nil
}
