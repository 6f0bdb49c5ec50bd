package audit

import (
	"context"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository appends and reads audit entries. There is deliberately no update
// or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextSequence(ctx context.Context, paymentID uuid.UUID) (int, error)
	Create(ctx context.Context, entry *models.CommissionAuditEntry) error
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionAuditEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) NextSequence(ctx context.Context, paymentID uuid.UUID) (int, error) {
	var current int
	if err := r.db.WithContext(ctx).
		Model(&models.CommissionAuditEntry{}).
		Where("payment_id = ?", paymentID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&current).Error; err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (r *repository) Create(ctx context.Context, entry *models.CommissionAuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionAuditEntry, error) {
	var entries []models.CommissionAuditEntry
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
