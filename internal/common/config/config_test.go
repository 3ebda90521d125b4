package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbank/internal/common/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "4532", cfg.Cards.IssuerPrefix)
	assert.Equal(t, 3, cfg.Cards.MaxActivePerUser)
	assert.Equal(t, 100, cfg.Cards.NumberMaxAttempts)
	assert.Equal(t, "300000", cfg.Cards.MaxCreditLimit.String())
	assert.Equal(t, "50000", cfg.Cards.MaxCreditAmount.String())
	assert.Equal(t, "COP", cfg.Cards.Currency)
	assert.Equal(t, 5, cfg.Cards.ValidityYears)
	assert.Equal(t, "10000", cfg.Payments.MaxAmount.String())
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CARD_MAX_ACTIVE_PER_USER", "5")
	t.Setenv("CARD_MAX_CREDIT_LIMIT", "1000000.50")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Cards.MaxActivePerUser)
	assert.Equal(t, "1000000.5", cfg.Cards.MaxCreditLimit.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
}

func TestValidate(t *testing.T) {
	t.Run("rejects a malformed issuer prefix", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("CARD_ISSUER_PREFIX", "45a2")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CARD_ISSUER_PREFIX")
	})

	t.Run("postgres requires a 32 byte card number key", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("STORAGE_DRIVER", "postgres")
		t.Setenv("CARD_NUMBER_KEY", "abcd")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CARD_NUMBER_KEY")
	})

	t.Run("accepts a valid postgres key", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("STORAGE_DRIVER", "postgres")
		t.Setenv("CARD_NUMBER_KEY", strings.Repeat("ab", 32))

		cfg, err := config.Load()
		require.NoError(t, err)
		key, err := cfg.CardNumberKeyBytes()
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})
}
