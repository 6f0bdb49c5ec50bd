package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// Repository persists disputes raised against commission payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.CommissionDispute) error
	FindForPayment(ctx context.Context, paymentID, disputeID uuid.UUID) (*models.CommissionDispute, error)
	ListActive(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionDispute, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionDispute, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from enums.DisputeStatus, updates map[string]any) (bool, error)
	SetActivePriorStatus(ctx context.Context, paymentID uuid.UUID, status enums.CommissionPaymentStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dispute repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.CommissionDispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindForPayment(ctx context.Context, paymentID, disputeID uuid.UUID) (*models.CommissionDispute, error) {
	var dispute models.CommissionDispute
	err := r.db.WithContext(ctx).
		Where("id = ? AND payment_id = ?", disputeID, paymentID).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) ListActive(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionDispute, error) {
	var rows []models.CommissionDispute
	err := r.db.WithContext(ctx).
		Where("payment_id = ? AND status IN ?", paymentID, []enums.DisputeStatus{enums.DisputeStatusOpen, enums.DisputeStatusInvestigating}).
		Order("submitted_date ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionDispute, error) {
	var rows []models.CommissionDispute
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("submitted_date ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from enums.DisputeStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionDispute{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetActivePriorStatus rewrites the episode prior status on every open or
// investigating dispute of the payment.
func (r *repository) SetActivePriorStatus(ctx context.Context, paymentID uuid.UUID, status enums.CommissionPaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.CommissionDispute{}).
		Where("payment_id = ? AND status IN ?", paymentID, []enums.DisputeStatus{enums.DisputeStatusOpen, enums.DisputeStatusInvestigating}).
		Update("prior_payment_status", status).Error
}
