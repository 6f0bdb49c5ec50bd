package payments

import (
	"fmt"

	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

// AllowedTransitions maps a payment status to the statuses it may move to.
var AllowedTransitions = map[enums.CommissionPaymentStatus][]enums.CommissionPaymentStatus{
	enums.CommissionPaymentPending: {
		enums.CommissionPaymentProcessing,
		enums.CommissionPaymentPaid,
		enums.CommissionPaymentDisputed,
		enums.CommissionPaymentCancelled,
	},
	enums.CommissionPaymentProcessing: {
		enums.CommissionPaymentPaid,
		enums.CommissionPaymentPending, // failed batch
		enums.CommissionPaymentDisputed,
		enums.CommissionPaymentCancelled,
	},
	enums.CommissionPaymentPaid: {
		enums.CommissionPaymentDisputed,
	},
	enums.CommissionPaymentDisputed: {
		enums.CommissionPaymentDisputed, // further dispute
		enums.CommissionPaymentPending,
		enums.CommissionPaymentPaid,
		enums.CommissionPaymentCancelled,
	},
	enums.CommissionPaymentCancelled: {}, // terminal
}

// CanTransition checks if a transition from one status to another is allowed.
func CanTransition(from, to enums.CommissionPaymentStatus) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a state conflict if the transition is not allowed.
func ValidateTransition(from, to enums.CommissionPaymentStatus) error {
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment cannot move from %s to %s", from, to)).
			WithDetails(map[string]any{"from": from, "to": to})
	}
	return nil
}
