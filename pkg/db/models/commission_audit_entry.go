package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// CommissionAuditEntry is an immutable record of one payment transition.
// Sequence orders entries within a payment and is unique per payment.
type CommissionAuditEntry struct {
	ID             uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID      uuid.UUID                      `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_audit_payment_sequence,priority:1"`
	Sequence       int                            `gorm:"column:sequence;not null;uniqueIndex:ux_audit_payment_sequence,priority:2"`
	OccurredAt     time.Time                      `gorm:"column:occurred_at;not null"`
	Action         enums.CommissionAuditAction    `gorm:"column:action;type:commission_audit_action;not null"`
	UserID         string                         `gorm:"column:user_id;not null"`
	UserName       string                         `gorm:"column:user_name;not null"`
	PreviousStatus *enums.CommissionPaymentStatus `gorm:"column:previous_status;type:commission_payment_status"`
	NewStatus      enums.CommissionPaymentStatus  `gorm:"column:new_status;type:commission_payment_status;not null"`
	Changes        datatypes.JSONMap              `gorm:"column:changes;type:jsonb;not null"`
	Notes          *string                        `gorm:"column:notes"`
	IPAddress      *string                        `gorm:"column:ip_address"`
}

func (e *CommissionAuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
