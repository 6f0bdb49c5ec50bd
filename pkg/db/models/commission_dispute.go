package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// CommissionDispute contests the correctness of its parent payment.
type CommissionDispute struct {
	ID                  uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID           uuid.UUID                     `gorm:"column:payment_id;type:uuid;not null;index"`
	DisputeType         enums.DisputeType             `gorm:"column:dispute_type;type:commission_dispute_type;not null"`
	Description         string                        `gorm:"column:description;not null"`
	SubmittedBy         string                        `gorm:"column:submitted_by;not null"`
	SubmittedDate       time.Time                     `gorm:"column:submitted_date;not null"`
	Status              enums.DisputeStatus           `gorm:"column:status;type:commission_dispute_status;not null"`
	OriginalAmount      decimal.Decimal               `gorm:"column:original_amount;type:numeric(12,2);not null"`
	PriorPaymentStatus  enums.CommissionPaymentStatus `gorm:"column:prior_payment_status;type:commission_payment_status;not null"`
	SupportingDocuments datatypes.JSONSlice[string]   `gorm:"column:supporting_documents;type:jsonb"`
	Resolution          *string                       `gorm:"column:resolution"`
	ResolvedBy          *string                       `gorm:"column:resolved_by"`
	ResolvedDate        *time.Time                    `gorm:"column:resolved_date"`
	AdjustedAmount      decimal.NullDecimal           `gorm:"column:adjusted_amount;type:numeric(12,2)"`
	CreatedAt           time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *CommissionDispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
