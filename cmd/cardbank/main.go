package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	cardsapi "cardbank/internal/cards/api"
	cardsapp "cardbank/internal/cards/application"
	"cardbank/internal/cards/domain"
	"cardbank/internal/cards/infrastructure/kafka"
	cardsmemory "cardbank/internal/cards/infrastructure/memory"
	cardspg "cardbank/internal/cards/infrastructure/postgres"
	"cardbank/internal/common/auth"
	"cardbank/internal/common/config"
	"cardbank/internal/common/logging"
	"cardbank/internal/common/metrics"
	vo "cardbank/internal/common/value_objects"
	paymentsapi "cardbank/internal/payments/api"
	paymentsapp "cardbank/internal/payments/application"
	paymentsdomain "cardbank/internal/payments/domain"
	paymentsmemory "cardbank/internal/payments/infrastructure/memory"
	paymentspg "cardbank/internal/payments/infrastructure/postgres"
	paymentsredis "cardbank/internal/payments/infrastructure/redis"
)

// requestTimeout is the maximum time allowed for processing a single request.
const requestTimeout = 5 * time.Second

type cardStore interface {
	domain.AtomicExecutor
	domain.Repositories
}

// readinessCheck reports whether one dependency can serve traffic.
type readinessCheck func(ctx context.Context) error

func main() {
	devToken := flag.String("dev-token", "", "print a one-hour token for the given user id (development only) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.JWTIssuer)
	if *devToken != "" {
		if err := printDevToken(cfg, tokens, *devToken); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, tokens); err != nil {
		logging.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, tokens *auth.TokenService) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx := logging.WithCorrelationID(ctx, vo.NewCorrelationID())
	logging.InfoContext(startupCtx, "Starting cardbank",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage", cfg.StorageDriver,
	)

	checks := map[string]readinessCheck{}

	// Storage
	var (
		store    cardStore
		payments paymentsdomain.PaymentRepository
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := cfg.NewPostgresPool(startupCtx)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		go config.ReportPoolStats(ctx, pool, 15*time.Second)

		key, err := cfg.CardNumberKeyBytes()
		if err != nil {
			return err
		}
		cipher, err := cardspg.NewNumberCipher(key)
		if err != nil {
			return err
		}
		pgStore := cardspg.NewDataStore(pool, cipher)
		store = pgStore
		payments = paymentspg.NewPaymentRepository(pool)
		checks["postgres"] = pgStore.Ping
	default:
		store = cardsmemory.NewDataStore()
		payments = paymentsmemory.NewPaymentRepository()
	}

	// Idempotency keys
	var idempotency paymentsdomain.IdempotencyStore = paymentsmemory.NewIdempotencyStore()
	if cfg.RedisURL != "" {
		client, err := cfg.NewRedisClient(startupCtx)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		idempotency = paymentsredis.NewIdempotencyStore(client)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	// Services
	currency, err := vo.ParseCurrency(cfg.Cards.Currency)
	if err != nil {
		return err
	}
	cardService := cardsapp.NewCardService(store, cardsapp.IssuancePolicy{
		IssuerPrefix:          cfg.Cards.IssuerPrefix,
		MaxActiveCardsPerUser: cfg.Cards.MaxActivePerUser,
		MaxNumberAttempts:     cfg.Cards.NumberMaxAttempts,
		MaxCreditLimit:        cfg.Cards.MaxCreditLimit,
		MaxCreditAmount:       cfg.Cards.MaxCreditAmount,
		Currency:              currency,
		ValidityYears:         cfg.Cards.ValidityYears,
	})
	paymentService := paymentsapp.NewPaymentService(payments, idempotency, cardService, paymentsapp.Policy{
		Currency:       currency,
		MaxAmount:      cfg.Payments.MaxAmount,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	// Outbox relay
	if cfg.KafkaEnabled() {
		client, err := cfg.NewKafkaClient(startupCtx)
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		defer client.Close()
		if err := kafka.EnsureTopic(startupCtx, client, cfg.KafkaTopic, cfg.KafkaPartitions, cfg.KafkaReplication); err != nil {
			return fmt.Errorf("creating topic: %w", err)
		}
		relay := kafka.NewRelay(store, client, kafka.RelayConfig{
			Topic:        cfg.KafkaTopic,
			BatchSize:    cfg.OutboxBatchSize,
			PollInterval: cfg.OutboxPollInterval,
		})
		go relay.Run(ctx)
		checks["kafka"] = client.Ping
		logging.InfoContext(startupCtx, "Outbox relay started", "topic", cfg.KafkaTopic)
	} else {
		logging.InfoContext(startupCtx, "KAFKA_BROKERS not set, card events stay in the outbox")
	}

	// HTTP
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Correlation-ID", paymentsapi.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Location", "X-Correlation-ID", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	r.Use(correlationMiddleware)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg, checks))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		r.Use(auth.Middleware(tokens))
		cardsapi.NewHandler(cardService).Register(r)
		paymentsapi.NewHandler(paymentService).Register(r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logging.Info("Server stopped")
	return nil
}

// correlationMiddleware adds a correlation ID and request timeout to each request.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID, err := vo.ParseCorrelationID(r.Header.Get("X-Correlation-ID"))
		if err != nil {
			corrID = vo.NewCorrelationID()
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		ctx = logging.WithCorrelationID(ctx, corrID)

		w.Header().Set("X-Correlation-ID", corrID.String())

		logging.DebugContext(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readyHandler pings every configured dependency.
func readyHandler(cfg *config.Config, checks map[string]readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logging.WarnContext(r.Context(), "Readiness check failed", "dependency", name, "error", err)
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeJSON(w, status, map[string]any{
			"status":       state,
			"environment":  cfg.Environment,
			"dependencies": results,
		})
	}
}

func printDevToken(cfg *config.Config, tokens *auth.TokenService, rawUserID string) error {
	if !cfg.IsDevelopment() {
		return errors.New("-dev-token is only available in development")
	}
	var userID vo.UserID
	if rawUserID == "new" {
		userID = vo.NewUserID()
	} else {
		parsed, err := vo.ParseUserID(rawUserID)
		if err != nil {
			return err
		}
		userID = parsed
	}
	token, err := tokens.Issue(userID, time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("user_id=%s\ntoken=%s\n", userID, token)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

