package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthStatus struct {
	Healthy           bool
	LastBatchTime     time.Time
	EventsPublished   uint64
	PendingEvents     int64
	DatabaseConnected bool
	BrokerConnected   bool
	DispatcherActive  bool
	Errors            []string
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// BrokerConn reports broker connectivity for health checks.
type BrokerConn interface {
	IsConnected() bool
}

type DispatcherHealthChecker struct {
	dispatcher *Dispatcher
	pool       *pgxpool.Pool
	broker     BrokerConn
	repo       *Repository
	threshold  time.Duration // How long without batches before unhealthy
}

func NewDispatcherHealthChecker(dispatcher *Dispatcher, pool *pgxpool.Pool, broker BrokerConn, repo *Repository, threshold time.Duration) *DispatcherHealthChecker {
	return &DispatcherHealthChecker{
		dispatcher: dispatcher,
		pool:       pool,
		broker:     broker,
		repo:       repo,
		threshold:  threshold,
	}
}

func (h *DispatcherHealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	published, lastBatch := h.dispatcher.Stats()
	status.EventsPublished = published
	status.LastBatchTime = lastBatch

	if err := h.pool.Ping(ctx); err != nil {
		status.DatabaseConnected = false
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.broker != nil {
		status.BrokerConnected = h.broker.IsConnected()
		if !status.BrokerConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "broker disconnected")
		}
	}

	status.DispatcherActive = h.dispatcher.Running()
	if !status.DispatcherActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "dispatcher not active")
	}

	if status.DatabaseConnected {
		pending, err := h.repo.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > 1000 {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	// Stale dispatcher only matters while work is queued
	if status.PendingEvents > 0 && !status.LastBatchTime.IsZero() {
		sinceLastBatch := time.Since(status.LastBatchTime)
		if sinceLastBatch > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no batches processed for %s", sinceLastBatch))
		}
	}

	return status
}

// HTTP handler helper
func (h *DispatcherHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	response := map[string]interface{}{
		"healthy":            status.Healthy,
		"events_published":   status.EventsPublished,
		"pending_events":     status.PendingEvents,
		"last_batch_time":    status.LastBatchTime,
		"database_connected": status.DatabaseConnected,
		"broker_connected":   status.BrokerConnected,
		"dispatcher_active":  status.DispatcherActive,
		"errors":             status.Errors,
	}

	w.Header().Set("Content-Type", "application/json")

	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}

// Metrics exporter for Prometheus
type PrometheusExporter struct {
	checker HealthChecker
}

func NewPrometheusExporter(checker HealthChecker) *PrometheusExporter {
	return &PrometheusExporter{checker: checker}
}

func (e *PrometheusExporter) Export(ctx context.Context) string {
	status := e.checker.Check(ctx)

	healthy := 0
	if status.Healthy {
		healthy = 1
	}

	dbConnected := 0
	if status.DatabaseConnected {
		dbConnected = 1
	}

	brokerConnected := 0
	if status.BrokerConnected {
		brokerConnected = 1
	}

	dispatcherActive := 0
	if status.DispatcherActive {
		dispatcherActive = 1
	}

	return fmt.Sprintf(`# HELP outbox_healthy Whether the outbox system is healthy
# TYPE outbox_healthy gauge
outbox_healthy %d

# HELP outbox_events_published_total Total number of events published
# TYPE outbox_events_published_total counter
outbox_events_published_total %d

# HELP outbox_pending_events Current number of pending events
# TYPE outbox_pending_events gauge
outbox_pending_events %d

# HELP outbox_database_connected Whether database is connected
# TYPE outbox_database_connected gauge
outbox_database_connected %d

# HELP outbox_broker_connected Whether the message broker is connected
# TYPE outbox_broker_connected gauge
outbox_broker_connected %d

# HELP outbox_dispatcher_active Whether the dispatcher is active
# TYPE outbox_dispatcher_active gauge
outbox_dispatcher_active %d

# HELP outbox_last_batch_timestamp Unix timestamp of last processed batch
# TYPE outbox_last_batch_timestamp gauge
outbox_last_batch_timestamp %d
`,
		healthy,
		status.EventsPublished,
		status.PendingEvents,
		dbConnected,
		brokerConnected,
		dispatcherActive,
		status.LastBatchTime.Unix(),
	)
}
