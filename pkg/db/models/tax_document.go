package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// TaxDocument is a data record summarizing an agent's paid commissions for a
// tax period. Nothing is rendered; FilePath is the storage key reserved for it.
type TaxDocument struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrganizerID      string                `gorm:"column:organizer_id;not null;index"`
	AgentID          string                `gorm:"column:agent_id;not null"`
	DocumentType     enums.TaxDocumentType `gorm:"column:document_type;type:tax_document_type;not null"`
	Year             int                   `gorm:"column:year;not null"`
	Quarter          *int                  `gorm:"column:quarter"`
	FilePath         string                `gorm:"column:file_path;not null"`
	GeneratedDate    time.Time             `gorm:"column:generated_date;not null"`
	GeneratedBy      string                `gorm:"column:generated_by;not null"`
	TotalCommissions decimal.Decimal       `gorm:"column:total_commissions;type:numeric(12,2);not null"`
	TotalTax         decimal.Decimal       `gorm:"column:total_tax;type:numeric(12,2);not null"`
	PaymentCount     int                   `gorm:"column:payment_count;not null"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (d *TaxDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// TaxDocumentPayment links a tax document to a payment it covers.
type TaxDocumentPayment struct {
	TaxDocumentID uuid.UUID `gorm:"column:tax_document_id;type:uuid;primaryKey"`
	PaymentID     uuid.UUID `gorm:"column:payment_id;type:uuid;primaryKey"`
}
