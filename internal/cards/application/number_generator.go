package application

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"cardbank/internal/cards/domain"
)

// RandomSource supplies uniformly distributed digits.
// *rand.Rand from math/rand/v2 satisfies it; tests pass a seeded generator.
type RandomSource interface {
	IntN(n int) int
}

// NewSecureRandomSource returns a ChaCha8 generator seeded from the operating system.
func NewSecureRandomSource() RandomSource {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}

// ExistsFunc reports whether a candidate number is already in use.
type ExistsFunc func(ctx context.Context, number domain.CardNumber) (bool, error)

// NumberGenerator produces Luhn-valid card numbers under a fixed issuer prefix.
// Concurrency: safe for concurrent use; draws from the source are serialized.
type NumberGenerator struct {
	prefix      string
	maxAttempts int

	mu  sync.Mutex
	src RandomSource
}

// NewNumberGenerator creates a generator for the given prefix.
func NewNumberGenerator(prefix string, maxAttempts int, src RandomSource) *NumberGenerator {
	return &NumberGenerator{
		prefix:      prefix,
		maxAttempts: maxAttempts,
		src:         src,
	}
}

// Candidate returns prefix + random digits + check digit.
func (g *NumberGenerator) Candidate() (domain.CardNumber, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(domain.CardNumberLength)
	b.WriteString(g.prefix)
	for b.Len() < domain.CardNumberLength-1 {
		b.WriteByte(byte('0' + g.src.IntN(10)))
	}
	body := b.String()
	return domain.ParseCardNumber(body + string(domain.LuhnCheckDigit(body)))
}

// Generate draws candidates until one is not in use.
// It returns the number and how many attempts it took, or
// ErrCardNumberGenerationExhausted once maxAttempts candidates were taken.
func (g *NumberGenerator) Generate(ctx context.Context, exists ExistsFunc) (domain.CardNumber, int, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.CardNumber{}, attempt - 1, err
		}

		candidate, err := g.Candidate()
		if err != nil {
			return domain.CardNumber{}, attempt, fmt.Errorf("building candidate: %w", err)
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return domain.CardNumber{}, attempt, fmt.Errorf("checking candidate: %w", err)
		}
		if !taken {
			return candidate, attempt, nil
		}
	}
	return domain.CardNumber{}, g.maxAttempts, domain.ErrCardNumberGenerationExhausted
}
