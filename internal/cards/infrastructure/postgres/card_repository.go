package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"cardbank/internal/cards/domain"
	"cardbank/internal/common/metrics"
	vo "cardbank/internal/common/value_objects"
)

const cardColumns = `
	id, user_id, number_ciphertext, holder_name, expires_at,
	balance_amount, credit_limit_amount, currency,
	status, version, created_at, updated_at`

// CardRepository implements domain.CardRepository using PostgreSQL.
// Card numbers are stored encrypted; lookups go through the keyed number hash.
type CardRepository struct {
	db     Executor
	cipher *NumberCipher
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db Executor, cipher *NumberCipher) *CardRepository {
	return &CardRepository{db: db, cipher: cipher}
}

// FindByID retrieves a card by ID.
func (r *CardRepository) FindByID(ctx context.Context, id domain.CardID) (*domain.Card, error) {
	return r.findOne(ctx, `SELECT `+cardColumns+` FROM cards.cards WHERE id = $1`, id.String())
}

// FindByNumber retrieves a card by its number.
func (r *CardRepository) FindByNumber(ctx context.Context, number domain.CardNumber) (*domain.Card, error) {
	return r.findOne(ctx, `SELECT `+cardColumns+` FROM cards.cards WHERE number_hash = $1`, r.cipher.Hash(number))
}

// FindByUser returns the user's cards, oldest first.
func (r *CardRepository) FindByUser(ctx context.Context, userID vo.UserID) ([]*domain.Card, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards.cards
		WHERE user_id = $1
		ORDER BY created_at, id`,
		userID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		card, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ExistsByNumber reports whether any card uses the number.
func (r *CardRepository) ExistsByNumber(ctx context.Context, number domain.CardNumber) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cards.cards WHERE number_hash = $1)`,
		r.cipher.Hash(number),
	).Scan(&exists)
	return exists, err
}

// Insert stores a new card.
// Returns ErrDuplicateCardNumber when the number hash is already taken.
func (r *CardRepository) Insert(ctx context.Context, card *domain.Card) error {
	ciphertext, err := r.cipher.Encrypt(card.Number())
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO cards.cards (
			id, user_id, number_ciphertext, number_hash, last_four,
			holder_name, expires_at,
			balance_amount, credit_limit_amount, currency,
			status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		card.ID().String(),
		card.UserID().String(),
		ciphertext,
		r.cipher.Hash(card.Number()),
		card.Number().LastFour(),
		card.HolderName(),
		card.ExpiresAt(),
		decimalToNumeric(card.Balance().Amount()),
		decimalToNumeric(card.CreditLimit().Amount()),
		card.CreditLimit().Currency().String(),
		string(card.Status()),
		card.Version(),
		card.CreatedAt(),
		card.UpdatedAt(),
	)
	if isUniqueViolation(err, "idx_cards_number_hash") {
		return domain.ErrDuplicateCardNumber
	}
	return err
}

// Update stores changes to an existing card.
// The row is only written if its version still matches the loaded card;
// on success the card's version is advanced to match the stored row.
func (r *CardRepository) Update(ctx context.Context, card *domain.Card) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE cards.cards
		SET holder_name = $1,
			expires_at = $2,
			balance_amount = $3,
			credit_limit_amount = $4,
			status = $5,
			version = version + 1,
			updated_at = $6
		WHERE id = $7 AND version = $8`,
		card.HolderName(),
		card.ExpiresAt(),
		decimalToNumeric(card.Balance().Amount()),
		decimalToNumeric(card.CreditLimit().Amount()),
		string(card.Status()),
		card.UpdatedAt(),
		card.ID().String(),
		card.Version(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM cards.cards WHERE id = $1)`, card.ID().String(),
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrCardNotFound
		}
		metrics.RecordOptimisticLockConflict("cards")
		return domain.ErrOptimisticLock
	}

	card.AdvanceVersion()
	return nil
}

func (r *CardRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Card, error) {
	card, err := r.scan(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCardNotFound
	}
	return card, err
}

func (r *CardRepository) scan(row pgx.Row) (*domain.Card, error) {
	var (
		id          string
		userID      string
		ciphertext  []byte
		holderName  string
		expiresAt   time.Time
		balance     pgtype.Numeric
		creditLimit pgtype.Numeric
		currency    string
		status      string
		version     int
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(
		&id, &userID, &ciphertext, &holderName, &expiresAt,
		&balance, &creditLimit, &currency,
		&status, &version, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	cardID, err := domain.ParseCardID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: card id: %v", domain.ErrCorruptData, err)
	}
	owner, err := vo.ParseUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id: %v", domain.ErrCorruptData, err)
	}
	number, err := r.cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	balanceMoney, err := moneyFromNumeric(balance, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", domain.ErrCorruptData, err)
	}
	limitMoney, err := moneyFromNumeric(creditLimit, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: credit limit: %v", domain.ErrCorruptData, err)
	}
	cardStatus, ok := domain.ParseCardStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrCorruptData, status)
	}

	return domain.ReconstructCard(
		cardID,
		owner,
		number,
		holderName,
		expiresAt.UTC(),
		balanceMoney,
		limitMoney,
		cardStatus,
		version,
		createdAt.UTC(),
		updatedAt.UTC(),
	), nil
}

func moneyFromNumeric(value pgtype.Numeric, currency string) (vo.Money, error) {
	amount, err := numericToDecimal(value)
	if err != nil {
		return vo.Money{}, err
	}
	return vo.New(amount, currency)
}

var _ domain.CardRepository = (*CardRepository)(nil)
