package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// CommissionPayment is one commission owed to one agent for one event period.
type CommissionPayment struct {
	ID               uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	OrganizerID      string                        `gorm:"column:organizer_id;not null;index"`
	AgentID          string                        `gorm:"column:agent_id;not null"`
	AgentName        string                        `gorm:"column:agent_name;not null"`
	EventID          string                        `gorm:"column:event_id;not null"`
	EventTitle       string                        `gorm:"column:event_title;not null"`
	CommissionAmount decimal.Decimal               `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	TaxAmount        decimal.Decimal               `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	NetAmount        decimal.Decimal               `gorm:"column:net_amount;type:numeric(12,2);not null"`
	SalesCount       int                           `gorm:"column:sales_count;not null"`
	PeriodStart      time.Time                     `gorm:"column:period_start;not null"`
	PeriodEnd        time.Time                     `gorm:"column:period_end;not null"`
	Status           enums.CommissionPaymentStatus `gorm:"column:status;type:commission_payment_status;not null"`
	PaymentMethod    enums.CommissionPaymentMethod `gorm:"column:payment_method;type:commission_payment_method;not null"`
	PaymentDate      *time.Time                    `gorm:"column:payment_date"`
	PaymentReference *string                       `gorm:"column:payment_reference"`
	Notes            *string                       `gorm:"column:notes"`
	ProcessedBy      *string                       `gorm:"column:processed_by"`
	BatchID          *uuid.UUID                    `gorm:"column:batch_id;type:uuid"`
	CreatedAt        time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                     `gorm:"column:updated_at;autoUpdateTime"`

	AuditTrail   []CommissionAuditEntry `gorm:"foreignKey:PaymentID"`
	Disputes     []CommissionDispute    `gorm:"foreignKey:PaymentID"`
	TaxDocuments []TaxDocument          `gorm:"many2many:tax_document_payments;joinForeignKey:PaymentID;joinReferences:TaxDocumentID"`
}

func (p *CommissionPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NetConsistent reports whether net equals commission minus tax.
func (p CommissionPayment) NetConsistent() bool {
	return p.NetAmount.Equal(p.CommissionAmount.Sub(p.TaxAmount))
}

// HasActiveDispute reports whether any loaded dispute is still open or under investigation.
func (p CommissionPayment) HasActiveDispute() bool {
	for _, d := range p.Disputes {
		if d.Status.IsActive() {
			return true
		}
	}
	return false
}
