package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// PayoutBatch groups payments submitted together for one disbursement run.
type PayoutBatch struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrganizerID           string                  `gorm:"column:organizer_id;not null;index"`
	Reference             string                  `gorm:"column:reference;not null;uniqueIndex"`
	BatchDate             time.Time               `gorm:"column:batch_date;not null"`
	TotalAmount           decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentCount          int                     `gorm:"column:payment_count;not null"`
	Status                enums.PayoutBatchStatus `gorm:"column:status;type:payout_batch_status;not null"`
	PaymentMethod         enums.PayoutMethod      `gorm:"column:payment_method;type:payout_method;not null"`
	ProcessedBy           string                  `gorm:"column:processed_by;not null"`
	CompletedDate         *time.Time              `gorm:"column:completed_date"`
	FailureReason         *string                 `gorm:"column:failure_reason"`
	DisbursementReference *string                 `gorm:"column:disbursement_reference"`
	Items                 []PayoutBatchItem       `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *PayoutBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// PaymentIDs lists the member payment ids in stored order.
func (b PayoutBatch) PaymentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Items))
	for _, item := range b.Items {
		ids = append(ids, item.PaymentID)
	}
	return ids
}

// PayoutBatchItem pins one payment and its net amount to a batch at creation time.
type PayoutBatchItem struct {
	BatchID   uuid.UUID       `gorm:"column:batch_id;type:uuid;primaryKey"`
	PaymentID uuid.UUID       `gorm:"column:payment_id;type:uuid;primaryKey;index"`
	NetAmount decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
