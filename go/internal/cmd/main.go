package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/messaging/events"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}
	setupLogging()

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, dbCfg, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	publisherClient := rabbitmq.NewClient(rabbitmq.NewConfigFromEnv(config.Service.Name))
	if err := publisherClient.Connect(ctx, 5); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer publisherClient.Close()
	if err := publisherClient.ExchangeDeclare(events.ActivityExchange); err != nil {
		log.Fatal().Err(err).Msg("failed to declare activity exchange")
	}

	services := setupServices(pool, config)

	// Outbox: confirmed publishes behind a metrics wrapper, polling dispatcher
	// as the at-least-once baseline, NOTIFY listener as the fast path.
	publisher := outbox.NewMetricPublisher(
		outbox.NewBrokerPublisher(publisherClient, events.ActivityExchange),
		&outbox.NoOpMetricsCollector{},
	)

	dispatcherCfg := outbox.DefaultConfig()
	if config.Outbox.PollIntervalSeconds > 0 {
		dispatcherCfg.PollInterval = time.Duration(config.Outbox.PollIntervalSeconds) * time.Second
	}
	if config.Outbox.BatchSize > 0 {
		dispatcherCfg.BatchSize = int32(config.Outbox.BatchSize)
	}
	dispatcher := outbox.NewDispatcher(services.OutboxRepo, publisher, dispatcherCfg, clockwork.NewRealClock())
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox dispatcher")
	}

	if config.Outbox.UseListener {
		listenerCfg := outbox.DefaultListenerConfig()
		listenerCfg.DatabaseURL = dbCfg.DSN()
		listener, err := outbox.NewListener(services.OutboxRepo, publisher, listenerCfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to start outbox listener, dispatcher polling continues")
		} else {
			go func() {
				if err := listener.Start(ctx); err != nil {
					log.Error().Err(err).Msg("outbox listener stopped")
				}
			}()
		}
	}

	manager := setupConsumers(pool, publisherClient, services, config)
	if err := manager.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumers")
	}

	checker := outbox.NewDispatcherHealthChecker(dispatcher, pool, publisherClient, services.OutboxRepo, 2*time.Minute)
	server := setupHealthServer(checker, config.Service.HealthAddr)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	go runLedgerCleanup(ctx, services.Idempotency, pool, config)

	log.Info().Str("service", config.Service.Name).Msg("activity service started")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	manager.Stop()
	if err := dispatcher.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop dispatcher")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if getEnv("LOG_PRETTY", "") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// runLedgerCleanup trims old processed-event rows on a fixed interval.
func runLedgerCleanup(ctx context.Context, processor *idempotency.Service, pool *pgxpool.Pool, config *Config) {
	retention := time.Duration(config.Ledger.RetentionDays) * 24 * time.Hour
	interval := time.Duration(config.Ledger.CleanupIntervalHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := processor.Cleanup(ctx, pool, retention); err != nil {
				log.Error().Err(err).Msg("ledger cleanup failed")
			}
		}
	}
}
