package taxdocuments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
)

// Repository stores tax document records and their payment links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, doc *models.TaxDocument, paymentIDs []uuid.UUID) error
	List(ctx context.Context, organizerID, agentID string) ([]models.TaxDocument, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, doc *models.TaxDocument, paymentIDs []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(doc).Error; err != nil {
		return err
	}
	if len(paymentIDs) == 0 {
		return nil
	}
	links := make([]models.TaxDocumentPayment, 0, len(paymentIDs))
	for _, id := range paymentIDs {
		links = append(links, models.TaxDocumentPayment{TaxDocumentID: doc.ID, PaymentID: id})
	}
	return db.Create(&links).Error
}

func (r *repository) List(ctx context.Context, organizerID, agentID string) ([]models.TaxDocument, error) {
	query := r.db.WithContext(ctx).Where("organizer_id = ?", organizerID)
	if agentID != "" {
		query = query.Where("agent_id = ?", agentID)
	}
	var rows []models.TaxDocument
	err := query.
		Order("year DESC").
		Order("generated_date DESC").
		Find(&rows).Error
	return rows, err
}
