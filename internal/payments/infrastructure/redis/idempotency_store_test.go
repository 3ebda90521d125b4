package redis_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"cardbank/internal/payments/domain"
	"cardbank/internal/payments/infrastructure/redis"
)

var testClient *goredis.Client

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}
	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}
	resource.Expire(120)

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		opts, err := goredis.ParseURL(fmt.Sprintf("redis://%s/0", resource.GetHostPort("6379/tcp")))
		if err != nil {
			return err
		}
		testClient = goredis.NewClient(opts)
		return testClient.Ping(context.Background()).Err()
	}); err != nil {
		log.Fatalf("Could not connect to redis: %s", err)
	}

	code := m.Run()

	_ = testClient.Close()
	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge resource: %s", err)
	}
	os.Exit(code)
}

// IdempotencyStoreSuite tests the Redis reservation protocol.
//
// Justification: SET NX semantics and key expiry are Redis behaviour that the
// in-memory store only imitates.
type IdempotencyStoreSuite struct {
	suite.Suite
	store *redis.IdempotencyStore
	ctx   context.Context
}

func TestIdempotencyStoreSuite(t *testing.T) {
	suite.Run(t, new(IdempotencyStoreSuite))
}

func (s *IdempotencyStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(testClient.FlushAll(s.ctx).Err())
	s.store = redis.NewIdempotencyStore(testClient)
}

func (s *IdempotencyStoreSuite) TestReserveThenComplete() {
	_, reserved, err := s.store.Reserve(s.ctx, "user:key", time.Minute)
	s.Require().NoError(err)
	s.True(reserved)

	record, reserved, err := s.store.Reserve(s.ctx, "user:key", time.Minute)
	s.Require().NoError(err)
	s.False(reserved)
	s.True(record.InProgress())

	id := domain.NewPaymentID()
	s.Require().NoError(s.store.Complete(s.ctx, "user:key", id, time.Minute))

	record, reserved, err = s.store.Reserve(s.ctx, "user:key", time.Minute)
	s.Require().NoError(err)
	s.False(reserved)
	s.Equal(id, record.PaymentID)
}

func (s *IdempotencyStoreSuite) TestReleaseAllowsRetry() {
	_, reserved, err := s.store.Reserve(s.ctx, "user:key", time.Minute)
	s.Require().NoError(err)
	s.True(reserved)

	s.Require().NoError(s.store.Release(s.ctx, "user:key"))

	_, reserved, err = s.store.Reserve(s.ctx, "user:key", time.Minute)
	s.Require().NoError(err)
	s.True(reserved)
}

func (s *IdempotencyStoreSuite) TestReservationExpires() {
	_, reserved, err := s.store.Reserve(s.ctx, "user:key", 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(reserved)

	s.Eventually(func() bool {
		_, reserved, err := s.store.Reserve(s.ctx, "user:key", time.Minute)
		return err == nil && reserved
	}, 3*time.Second, 100*time.Millisecond)
}

func (s *IdempotencyStoreSuite) TestScopesAreIndependent() {
	_, first, err := s.store.Reserve(s.ctx, "alice:key", time.Minute)
	s.Require().NoError(err)
	_, second, err := s.store.Reserve(s.ctx, "bob:key", time.Minute)
	s.Require().NoError(err)
	s.True(first)
	s.True(second)
}
