package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// PaymentConfiguration is the payout policy of one organizer.
type PaymentConfiguration struct {
	OrganizerID          string                    `gorm:"column:organizer_id;primaryKey"`
	PaymentSchedule      enums.PaymentSchedule     `gorm:"column:payment_schedule;type:payment_schedule;not null"`
	MinimumPayout        decimal.Decimal           `gorm:"column:minimum_payout;type:numeric(12,2);not null"`
	TaxRate              decimal.Decimal           `gorm:"column:tax_rate;type:numeric(5,4);not null"`
	DefaultPaymentMethod enums.DefaultPayoutMethod `gorm:"column:default_payment_method;type:default_payout_method;not null"`
	AutoPayEnabled       bool                      `gorm:"column:auto_pay_enabled;not null"`
	RequireApproval      bool                      `gorm:"column:require_approval;not null"`
	PaymentDay           int                       `gorm:"column:payment_day;not null"`
	BankAccountName      *string                   `gorm:"column:bank_account_name"`
	BankRoutingNumber    *string                   `gorm:"column:bank_routing_number"`
	BankAccountNumber    *string                   `gorm:"column:bank_account_number"`
	PayPalClientID       *string                   `gorm:"column:paypal_client_id"`
	PayPalSandboxMode    *bool                     `gorm:"column:paypal_sandbox_mode"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
