package enums

import "fmt"

// CommissionPaymentStatus maps to the commission_payment_status enum in Postgres.
type CommissionPaymentStatus string

const (
	CommissionPaymentPending    CommissionPaymentStatus = "pending"
	CommissionPaymentProcessing CommissionPaymentStatus = "processing"
	CommissionPaymentPaid       CommissionPaymentStatus = "paid"
	CommissionPaymentDisputed   CommissionPaymentStatus = "disputed"
	CommissionPaymentCancelled  CommissionPaymentStatus = "cancelled"
)

var validCommissionPaymentStatuses = []CommissionPaymentStatus{
	CommissionPaymentPending,
	CommissionPaymentProcessing,
	CommissionPaymentPaid,
	CommissionPaymentDisputed,
	CommissionPaymentCancelled,
}

// IsValid reports whether the value matches the canonical commission payment status enum.
func (c CommissionPaymentStatus) IsValid() bool {
	for _, candidate := range validCommissionPaymentStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionPaymentStatus converts raw input into CommissionPaymentStatus.
func ParseCommissionPaymentStatus(value string) (CommissionPaymentStatus, error) {
	for _, candidate := range validCommissionPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission payment status %q", value)
}

// IsTerminal reports whether no further transition can leave the status
// other than through a dispute.
func (c CommissionPaymentStatus) IsTerminal() bool {
	return c == CommissionPaymentPaid || c == CommissionPaymentCancelled
}
