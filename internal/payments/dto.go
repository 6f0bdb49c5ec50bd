package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

// Filters narrows a payment query. Zero values are ignored.
type Filters struct {
	Status        *enums.CommissionPaymentStatus
	AgentID       string
	EventID       string
	From          *time.Time
	To            *time.Time
	PaymentMethod *enums.CommissionPaymentMethod
}

// Validate rejects unknown enum filters and inverted date ranges.
func (f Filters) Validate() error {
	if f.Status != nil && !f.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if f.PaymentMethod != nil && !f.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method filter")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "date range start must not be after its end")
	}
	return nil
}

// CreateInput describes a newly accrued commission.
type CreateInput struct {
	AgentID          string
	AgentName        string
	EventID          string
	EventTitle       string
	CommissionAmount decimal.Decimal
	// TaxAmount overrides the configured tax rate when set.
	TaxAmount     *decimal.Decimal
	SalesCount    int
	PeriodStart   time.Time
	PeriodEnd     time.Time
	PaymentMethod enums.CommissionPaymentMethod
	Notes         string
	Actor         audit.Actor
}

// MarkPaidInput records a manual settlement. Actor.ID is stored as processedBy.
type MarkPaidInput struct {
	Method    enums.CommissionPaymentMethod
	Reference string
	Notes     string
	Actor     audit.Actor
}

// CancelInput voids a payment that has not settled.
type CancelInput struct {
	Reason string
	Actor  audit.Actor
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// MoneyString renders an amount with exactly two decimals.
func MoneyString(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
