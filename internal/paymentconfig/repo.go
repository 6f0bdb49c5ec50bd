package paymentconfig

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
)

// Repository persists organizer payment configurations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, organizerID string) (*models.PaymentConfiguration, error)
	Create(ctx context.Context, cfg *models.PaymentConfiguration) error
	Save(ctx context.Context, cfg *models.PaymentConfiguration) error
	ListAutoPay(ctx context.Context) ([]models.PaymentConfiguration, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a configuration repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns nil without error when the organizer has no configuration.
func (r *repository) Find(ctx context.Context, organizerID string) (*models.PaymentConfiguration, error) {
	var cfg models.PaymentConfiguration
	err := r.db.WithContext(ctx).Where("organizer_id = ?", organizerID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) Create(ctx context.Context, cfg *models.PaymentConfiguration) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *repository) Save(ctx context.Context, cfg *models.PaymentConfiguration) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

func (r *repository) ListAutoPay(ctx context.Context) ([]models.PaymentConfiguration, error) {
	var rows []models.PaymentConfiguration
	err := r.db.WithContext(ctx).
		Where("auto_pay_enabled = ? AND require_approval = ?", true, false).
		Order("organizer_id ASC").
		Find(&rows).Error
	return rows, err
}
