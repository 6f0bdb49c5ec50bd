package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateCommissionPayment OutboxAggregateType = "commission_payment"
	AggregatePayoutBatch       OutboxAggregateType = "payout_batch"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCommissionPayment,
	AggregatePayoutBatch,
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

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCommissionCreated   OutboxEventType = "commission_payment_created"
	EventCommissionPaid      OutboxEventType = "commission_payment_paid"
	EventCommissionCancelled OutboxEventType = "commission_payment_cancelled"
	EventDisputeOpened       OutboxEventType = "commission_dispute_opened"
	EventDisputeResolved     OutboxEventType = "commission_dispute_resolved"
	EventPayoutBatchCreated  OutboxEventType = "payout_batch_created"
	EventPayoutBatchComplete OutboxEventType = "payout_batch_completed"
	EventPayoutBatchFailed   OutboxEventType = "payout_batch_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCommissionCreated,
	EventCommissionPaid,
	EventCommissionCancelled,
	EventDisputeOpened,
	EventDisputeResolved,
	EventPayoutBatchCreated,
	EventPayoutBatchComplete,
	EventPayoutBatchFailed,
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
