package enums

import "fmt"

// PayoutBatchStatus maps to the payout_batch_status enum in Postgres.
type PayoutBatchStatus string

const (
	PayoutBatchPending    PayoutBatchStatus = "pending"
	PayoutBatchProcessing PayoutBatchStatus = "processing"
	PayoutBatchCompleted  PayoutBatchStatus = "completed"
	PayoutBatchFailed     PayoutBatchStatus = "failed"
)

var validPayoutBatchStatuses = []PayoutBatchStatus{
	PayoutBatchPending,
	PayoutBatchProcessing,
	PayoutBatchCompleted,
	PayoutBatchFailed,
}

// IsValid reports whether the value matches the canonical payout batch status enum.
func (p PayoutBatchStatus) IsValid() bool {
	for _, candidate := range validPayoutBatchStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutBatchStatus converts raw input into PayoutBatchStatus.
func ParsePayoutBatchStatus(value string) (PayoutBatchStatus, error) {
	for _, candidate := range validPayoutBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout batch status %q", value)
}
