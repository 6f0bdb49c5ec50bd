package enums

import "fmt"

// DefaultPayoutMethod maps to the default_payout_method enum in Postgres.
type DefaultPayoutMethod string

const (
	DefaultPayoutBankTransfer DefaultPayoutMethod = "bank_transfer"
	DefaultPayoutPayPal       DefaultPayoutMethod = "paypal"
	DefaultPayoutCheck        DefaultPayoutMethod = "check"
)

var validDefaultPayoutMethods = []DefaultPayoutMethod{
	DefaultPayoutBankTransfer,
	DefaultPayoutPayPal,
	DefaultPayoutCheck,
}

// IsValid reports whether the value matches the canonical default payout method enum.
func (d DefaultPayoutMethod) IsValid() bool {
	for _, candidate := range validDefaultPayoutMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDefaultPayoutMethod converts raw input into DefaultPayoutMethod.
func ParseDefaultPayoutMethod(value string) (DefaultPayoutMethod, error) {
	for _, candidate := range validDefaultPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid default payout method %q", value)
}

// PayoutMethod maps the organizer preference onto a batch disbursement method.
// Checks are cut by hand, so they batch as manual payouts.
func (d DefaultPayoutMethod) PayoutMethod() PayoutMethod {
	switch d {
	case DefaultPayoutPayPal:
		return PayoutMethodPayPal
	case DefaultPayoutCheck:
		return PayoutMethodManual
	default:
		return PayoutMethodBankTransfer
	}
}
