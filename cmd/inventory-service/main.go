package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/medflow/stockledger/internal/inventory/consumers"
	"github.com/medflow/stockledger/internal/inventory/events"
	"github.com/medflow/stockledger/internal/inventory/handler"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/internal/inventory/service"
	"github.com/medflow/stockledger/migrations"
	"github.com/medflow/stockledger/pkg/config"
	"github.com/medflow/stockledger/pkg/database"
	"github.com/medflow/stockledger/pkg/httputil"
	"github.com/medflow/stockledger/pkg/i18n"
	"github.com/medflow/stockledger/pkg/idempotency"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/messaging"
)

const serviceName = "inventory-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	db.SetRetryPolicy(database.RetryPolicy{
		MaxRetries: cfg.Allocation.MaxRetries,
		Backoff:    cfg.Allocation.RetryBackoff,
	})

	if cfg.Database.AutoMigrate {
		if err := migrate(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(ctx, &cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Redis only backs idempotency keys; the service runs without it
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, idempotency keys disabled until it recovers")
	}
	idempotencyStore := idempotency.NewRedisStore(rdb)

	userCacheRepo := repository.NewUserCacheRepository(db)
	inventoryService := service.NewInventoryService(repository.NewStore(db), publisher, log,
		service.WithNameResolver(userCacheRepo),
	)

	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}
	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	var expiryScheduler *service.ExpiryScheduler
	if cfg.Expiry.ScanInterval > 0 {
		expiryScheduler = service.NewExpiryScheduler(inventoryService, publisher, cfg.Expiry.ScanInterval, cfg.Expiry.WindowDays, log)
		expiryScheduler.Start(ctx)
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(i18n.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-Request-ID", idempotency.HeaderKey},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]any{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"redis":    idempotencyStore.Health(r.Context()),
		})
	})

	handlers := handler.NewHandlers(inventoryService, log)
	r.Mount("/api/v1/inventory", handlers.Routes(
		idempotency.Middleware(idempotencyStore, cfg.Redis.IdempotencyTTL, log),
	))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the consumer and scheduler before draining HTTP
	cancel()
	if expiryScheduler != nil {
		expiryScheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func migrate(cfg *config.Config, log *logger.Logger) error {
	m, err := database.NewMigrator(migrations.FS, cfg.Database.MigrationURL(), log)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
