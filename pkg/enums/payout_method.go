package enums

import "fmt"

// PayoutMethod maps to the payout_method enum in Postgres.
type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
	PayoutMethodPayPal       PayoutMethod = "paypal"
	PayoutMethodManual       PayoutMethod = "manual"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodBankTransfer,
	PayoutMethodPayPal,
	PayoutMethodManual,
}

// IsValid reports whether the value matches the canonical payout method enum.
func (p PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	for _, candidate := range validPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}

// CommissionMethod is the payment method recorded on members of a batch paid this way.
func (p PayoutMethod) CommissionMethod() CommissionPaymentMethod {
	switch p {
	case PayoutMethodBankTransfer:
		return CommissionMethodBankTransfer
	case PayoutMethodPayPal:
		return CommissionMethodPayPal
	default:
		return CommissionMethodManual
	}
}
