package enums

import "fmt"

// PaymentSchedule maps to the payment_schedule enum in Postgres.
type PaymentSchedule string

const (
	PaymentScheduleWeekly    PaymentSchedule = "weekly"
	PaymentScheduleBiWeekly  PaymentSchedule = "bi_weekly"
	PaymentScheduleMonthly   PaymentSchedule = "monthly"
	PaymentScheduleQuarterly PaymentSchedule = "quarterly"
)

var validPaymentSchedules = []PaymentSchedule{
	PaymentScheduleWeekly,
	PaymentScheduleBiWeekly,
	PaymentScheduleMonthly,
	PaymentScheduleQuarterly,
}

// IsValid reports whether the value matches the canonical payment schedule enum.
func (p PaymentSchedule) IsValid() bool {
	for _, candidate := range validPaymentSchedules {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentSchedule converts raw input into PaymentSchedule.
func ParsePaymentSchedule(value string) (PaymentSchedule, error) {
	for _, candidate := range validPaymentSchedules {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment schedule %q", value)
}
