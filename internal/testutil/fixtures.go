package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// FixedNow is the clock every service test pins to.
var FixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Money parses a fixed-point amount and panics on bad input.
func Money(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// PaymentOption tweaks a seeded payment before it is written.
type PaymentOption func(*models.CommissionPayment)

func WithStatus(status enums.CommissionPaymentStatus) PaymentOption {
	return func(p *models.CommissionPayment) { p.Status = status }
}

func WithAgent(id, name string) PaymentOption {
	return func(p *models.CommissionPayment) {
		p.AgentID = id
		p.AgentName = name
	}
}

func WithAmounts(commission, tax string) PaymentOption {
	return func(p *models.CommissionPayment) {
		p.CommissionAmount = Money(commission)
		p.TaxAmount = Money(tax)
		p.NetAmount = p.CommissionAmount.Sub(p.TaxAmount)
	}
}

func WithPeriod(start, end time.Time) PaymentOption {
	return func(p *models.CommissionPayment) {
		p.PeriodStart = start
		p.PeriodEnd = end
	}
}

func WithEvent(id, title string) PaymentOption {
	return func(p *models.CommissionPayment) {
		p.EventID = id
		p.EventTitle = title
	}
}

func WithPaidDate(at time.Time) PaymentOption {
	return func(p *models.CommissionPayment) {
		p.Status = enums.CommissionPaymentPaid
		p.PaymentDate = &at
		ref := "REF-" + at.Format("20060102")
		p.PaymentReference = &ref
		by := "seed"
		p.ProcessedBy = &by
	}
}

// SeedPayment writes a pending payment of 100.00 commission and 15.00 tax for
// agent-1 unless options say otherwise.
func SeedPayment(t *testing.T, db *gorm.DB, organizerID string, opts ...PaymentOption) *models.CommissionPayment {
	t.Helper()

	payment := &models.CommissionPayment{
		ID:               uuid.New(),
		OrganizerID:      organizerID,
		AgentID:          "agent-1",
		AgentName:        "Agent One",
		EventID:          "event-1",
		EventTitle:       "Spring Gala",
		CommissionAmount: Money("100.00"),
		TaxAmount:        Money("15.00"),
		NetAmount:        Money("85.00"),
		SalesCount:       4,
		PeriodStart:      Day(2024, time.January, 1),
		PeriodEnd:        Day(2024, time.January, 31),
		Status:           enums.CommissionPaymentPending,
		PaymentMethod:    enums.CommissionMethodManual,
	}
	for _, opt := range opts {
		opt(payment)
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}

// ReloadPayment reads the payment row back without associations.
func ReloadPayment(t *testing.T, db *gorm.DB, id uuid.UUID) models.CommissionPayment {
	t.Helper()
	var payment models.CommissionPayment
	if err := db.First(&payment, "id = ?", id).Error; err != nil {
		t.Fatalf("reload payment %s: %v", id, err)
	}
	return payment
}
