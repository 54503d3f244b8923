package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/activity"
	"github.com/carewell/activity-service/go/internal/consumers"
	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/outbox"
	"github.com/carewell/activity-service/go/internal/refallocation"
	"github.com/carewell/activity-service/go/internal/refpatient"
)

type Services struct {
	OutboxRepo   *outbox.Repository
	Idempotency  *idempotency.Service
	Patients     *refpatient.Service
	Allocations  *refallocation.Service
	Activities   *activity.Service
	ActivityRepo *activity.Repository
}

func setupServices(pool *pgxpool.Pool, config *Config) *Services {
	// Repository layer → idempotent processing → domain services
	outboxRepo := outbox.NewRepository(pool)

	idemCfg := idempotency.DefaultConfig()
	idemCfg.ProcessedBy = config.Service.Name
	if config.Idempotency.RecordPermanentFailures != nil {
		idemCfg.RecordPermanentFailures = *config.Idempotency.RecordPermanentFailures
	}
	processor := idempotency.NewService(idempotency.NewRepository(), clockwork.NewRealClock(), idemCfg)

	activityRepo := activity.NewRepository()

	return &Services{
		OutboxRepo:   outboxRepo,
		Idempotency:  processor,
		Patients:     refpatient.NewService(refpatient.NewRepository(), processor),
		Allocations:  refallocation.NewService(refallocation.NewRepository(), processor),
		Activities:   activity.NewService(pool, activityRepo, outboxRepo),
		ActivityRepo: activityRepo,
	}
}

func setupConsumers(pool *pgxpool.Pool, driftPublisher *rabbitmq.Client, services *Services, config *Config) *consumers.Manager {
	available := map[string]consumers.Consumer{
		"patient":            consumers.NewPatientConsumer(pool, services.Idempotency, services.Patients),
		"patient-allocation": consumers.NewAllocationConsumer(pool, services.Idempotency, services.Allocations),
		"drift":              consumers.NewDriftConsumer(pool, services.ActivityRepo, driftPublisher),
	}

	var enabled []consumers.Consumer
	for _, name := range config.Consumers.Enabled {
		consumer, ok := available[name]
		if !ok {
			log.Warn().Str("consumer", name).Msg("unknown consumer in config, skipping")
			continue
		}
		enabled = append(enabled, consumer)
	}

	newClient := func(consumerName string) consumers.BrokerClient {
		cfg := rabbitmq.NewConfigFromEnv(fmt.Sprintf("%s.%s", config.Service.Name, consumerName))
		return rabbitmq.NewClient(cfg)
	}
	return consumers.NewManager(newClient, enabled...)
}
