package enums

import "fmt"

// CommissionPaymentMethod maps to the commission_payment_method enum in Postgres.
type CommissionPaymentMethod string

const (
	CommissionMethodManual       CommissionPaymentMethod = "manual"
	CommissionMethodAutomated    CommissionPaymentMethod = "automated"
	CommissionMethodBankTransfer CommissionPaymentMethod = "bank_transfer"
	CommissionMethodPayPal       CommissionPaymentMethod = "paypal"
	CommissionMethodCheck        CommissionPaymentMethod = "check"
)

var validCommissionPaymentMethods = []CommissionPaymentMethod{
	CommissionMethodManual,
	CommissionMethodAutomated,
	CommissionMethodBankTransfer,
	CommissionMethodPayPal,
	CommissionMethodCheck,
}

// IsValid reports whether the value matches the canonical commission payment method enum.
func (c CommissionPaymentMethod) IsValid() bool {
	for _, candidate := range validCommissionPaymentMethods {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionPaymentMethod converts raw input into CommissionPaymentMethod.
func ParseCommissionPaymentMethod(value string) (CommissionPaymentMethod, error) {
	for _, candidate := range validCommissionPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission payment method %q", value)
}
