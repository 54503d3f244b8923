// Command resync republishes full-state sync events for every row of a
// record type, soft-deleted rows included. Downstream consumers treat the
// events as upserts, so a run converges their replicas with this database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/carewell/activity-service/go/internal/activity"
	"github.com/carewell/activity-service/go/internal/dbconfig"
	"github.com/carewell/activity-service/go/internal/messaging/events"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

func main() {
	recordType := flag.String("type", "", "record type to resync: activity | centre_activity | centre_activity_preference | centre_activity_recommendation | centre_activity_exclusion")
	batchSize := flag.Int("batch", 100, "rows fetched per page")
	flag.Parse()

	if *recordType == "" {
		fmt.Fprintln(os.Stderr, "usage: resync -type <record_type> [-batch n]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	ctx := context.Background()

	pool, err := dbconfig.NewPool(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	client := rabbitmq.NewClient(rabbitmq.NewConfigFromEnv("activity_service.resync"))
	if err := client.Connect(ctx, 5); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to broker: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.ExchangeDeclare(events.ActivityExchange); err != nil {
		fmt.Fprintf(os.Stderr, "failed to declare exchange: %v\n", err)
		os.Exit(1)
	}

	repo := activity.NewRepository()
	published, failed, err := resyncAll(ctx, pool, repo, client, *recordType, int32(*batchSize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "resync failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Resync complete for %s: %d published, %d errors\n", *recordType, published, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

type publisher interface {
	Publish(ctx context.Context, exchange, routingKey, correlationID string, data any) error
}

// resyncAll pages through the record type's table and publishes one sync
// event per row.
func resyncAll(ctx context.Context, pool sqlutil.Querier, repo *activity.Repository, pub publisher, recordType string, batchSize int32) (int, int, error) {
	var published, failed int

	publish := func(payload any, routingKey, correlationID string) {
		if err := pub.Publish(ctx, events.ActivityExchange, routingKey, correlationID, payload); err != nil {
			fmt.Fprintf(os.Stderr, "failed to publish %s sync: %v\n", recordType, err)
			failed++
			return
		}
		published++
	}

	for offset := int64(0); ; offset += int64(batchSize) {
		count := 0

		switch recordType {
		case events.RecordTypeActivity:
			rows, err := repo.ListActivities(ctx, pool, batchSize, offset)
			if err != nil {
				return published, failed, err
			}
			count = len(rows)
			for _, row := range rows {
				sync, key := events.NewActivitySync(row, events.SyncReasonBackfill)
				publish(sync, key, sync.CorrelationID)
			}

		case events.RecordTypeCentreActivity:
			rows, err := repo.ListCentreActivities(ctx, pool, batchSize, offset)
			if err != nil {
				return published, failed, err
			}
			count = len(rows)
			for _, row := range rows {
				sync, key := events.NewCentreActivitySync(row, events.SyncReasonBackfill)
				publish(sync, key, sync.CorrelationID)
			}

		case events.RecordTypePreference:
			rows, err := repo.ListPreferences(ctx, pool, batchSize, offset)
			if err != nil {
				return published, failed, err
			}
			count = len(rows)
			for _, row := range rows {
				sync, key := events.NewPreferenceSync(row, events.SyncReasonBackfill)
				publish(sync, key, sync.CorrelationID)
			}

		case events.RecordTypeRecommendation:
			rows, err := repo.ListRecommendations(ctx, pool, batchSize, offset)
			if err != nil {
				return published, failed, err
			}
			count = len(rows)
			for _, row := range rows {
				sync, key := events.NewRecommendationSync(row, events.SyncReasonBackfill)
				publish(sync, key, sync.CorrelationID)
			}

		case events.RecordTypeExclusion:
			rows, err := repo.ListExclusions(ctx, pool, batchSize, offset)
			if err != nil {
				return published, failed, err
			}
			count = len(rows)
			for _, row := range rows {
				sync, key := events.NewExclusionSync(row, events.SyncReasonBackfill)
				publish(sync, key, sync.CorrelationID)
			}

		default:
			return 0, 0, fmt.Errorf("unknown record type %q", recordType)
		}

		if count < int(batchSize) {
			return published, failed, nil
		}
	}
}
