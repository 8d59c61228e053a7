package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder               OutboxAggregateType = "order"
	AggregateTransportAssignment OutboxAggregateType = "transport_assignment"
	AggregateEarning             OutboxAggregateType = "earning"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateTransportAssignment,
	AggregateEarning,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCandidateOffered   OutboxEventType = "candidate_offered"
	EventOfferDecided       OutboxEventType = "offer_decided"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderCompleted     OutboxEventType = "order_completed"
	EventDriverOffered      OutboxEventType = "driver_offered"
	EventTransportDecided   OutboxEventType = "transport_decided"
	EventEarningRecorded    OutboxEventType = "earning_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCandidateOffered,
	EventOfferDecided,
	EventOrderStatusChanged,
	EventOrderCompleted,
	EventDriverOffered,
	EventTransportDecided,
	EventEarningRecorded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an outbox row stopped being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
