package idempotency

import "time"

// ProcessedEvent is one row of the processing ledger. The correlation id is
// the primary key, so inserting a duplicate fails with a unique violation
// and the message is recognized as already handled.
type ProcessedEvent struct {
	CorrelationID   string     `json:"correlation_id"`
	EventType       string     `json:"event_type"`
	AggregateID     string     `json:"aggregate_id"`
	ProcessedAt     time.Time  `json:"processed_at"`
	ProcessedBy     string     `json:"processed_by"`
	OperationResult *string    `json:"operation_result,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

// ResultKind classifies the outcome of processing one message.
type ResultKind int

const (
	// ResultSuccess means the business operation ran and the ledger row was written.
	ResultSuccess ResultKind = iota
	// ResultDuplicate means the correlation id was already in the ledger.
	ResultDuplicate
	// ResultNotFound means the target entity does not exist locally.
	ResultNotFound
	// ResultRetryableFailure means a transient error; the message should be redelivered.
	ResultRetryableFailure
	// ResultPermanentFailure means the message can never succeed; it is recorded and dropped.
	ResultPermanentFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultDuplicate:
		return "duplicate"
	case ResultNotFound:
		return "not_found"
	case ResultRetryableFailure:
		return "failed_retryable"
	case ResultPermanentFailure:
		return "failed_permanent"
	default:
		return "unknown"
	}
}

// Result is the outcome of an idempotent processing attempt.
type Result struct {
	Kind ResultKind
	Err  error
}

func Success() Result { return Result{Kind: ResultSuccess} }

func Duplicate() Result { return Result{Kind: ResultDuplicate} }

func NotFound() Result { return Result{Kind: ResultNotFound} }

func RetryableFailure(err error) Result { return Result{Kind: ResultRetryableFailure, Err: err} }

func PermanentFailure(err error) Result { return Result{Kind: ResultPermanentFailure, Err: err} }

// Stats summarizes ledger contents for monitoring.
type Stats struct {
	TotalProcessed int64            `json:"total_processed_events"`
	Last24Hours    int64            `json:"events_last_24h"`
	WithErrors     int64            `json:"events_with_errors"`
	ByType         map[string]int64 `json:"events_by_type"`
	GeneratedAt    time.Time        `json:"stats_generated_at"`
}
