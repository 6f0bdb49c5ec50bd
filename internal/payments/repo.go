package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.CommissionPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CommissionPayment, error) {
	var payment models.CommissionPayment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.CommissionPayment, error) {
	var payment models.CommissionPayment
	err := r.db.WithContext(ctx).
		Preload("AuditTrail", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Preload("Disputes", func(db *gorm.DB) *gorm.DB { return db.Order("submitted_date ASC").Order("id ASC") }).
		Preload("TaxDocuments", func(db *gorm.DB) *gorm.DB { return db.Order("generated_date ASC") }).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context, organizerID string, filters Filters) ([]models.CommissionPayment, error) {
	query := r.db.WithContext(ctx).Where("organizer_id = ?", organizerID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.AgentID != "" {
		query = query.Where("agent_id = ?", filters.AgentID)
	}
	if filters.EventID != "" {
		query = query.Where("event_id = ?", filters.EventID)
	}
	if filters.PaymentMethod != nil {
		query = query.Where("payment_method = ?", *filters.PaymentMethod)
	}
	// Range filters select payments whose period overlaps the requested window.
	if filters.To != nil {
		query = query.Where("period_start <= ?", filters.To.UTC())
	}
	if filters.From != nil {
		query = query.Where("period_end >= ?", filters.From.UTC())
	}

	var rows []models.CommissionPayment
	err := query.
		Order("period_end DESC").
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindByIDs(ctx context.Context, organizerID string, ids []uuid.UUID) ([]models.CommissionPayment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.CommissionPayment
	err := r.db.WithContext(ctx).
		Where("organizer_id = ? AND id IN ?", organizerID, ids).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStatus(ctx context.Context, organizerID string, status enums.CommissionPaymentStatus) ([]models.CommissionPayment, error) {
	var rows []models.CommissionPayment
	err := r.db.WithContext(ctx).
		Where("organizer_id = ? AND status = ?", organizerID, status).
		Order("agent_id ASC").
		Order("period_end ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListPaidForAgent(ctx context.Context, organizerID, agentID string, from, to time.Time) ([]models.CommissionPayment, error) {
	var rows []models.CommissionPayment
	err := r.db.WithContext(ctx).
		Where("organizer_id = ? AND agent_id = ? AND status = ?", organizerID, agentID, enums.CommissionPaymentPaid).
		Where("payment_date >= ? AND payment_date < ?", from.UTC(), to.UTC()).
		Order("payment_date ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListOrganizersWithStatus(ctx context.Context, status enums.CommissionPaymentStatus) ([]string, error) {
	var organizers []string
	err := r.db.WithContext(ctx).
		Model(&models.CommissionPayment{}).
		Where("status = ?", status).
		Distinct("organizer_id").
		Order("organizer_id ASC").
		Pluck("organizer_id", &organizers).Error
	return organizers, err
}

// TransitionStatus applies updates only if the row still holds the expected
// status. It reports false when another writer got there first.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from enums.CommissionPaymentStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionPayment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RejectActiveDisputes(ctx context.Context, paymentID uuid.UUID, resolution, resolvedBy string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionDispute{}).
		Where("payment_id = ? AND status IN ?", paymentID, []enums.DisputeStatus{enums.DisputeStatusOpen, enums.DisputeStatusInvestigating}).
		Updates(map[string]any{
			"status":        enums.DisputeStatusRejected,
			"resolution":    resolution,
			"resolved_by":   resolvedBy,
			"resolved_date": at,
		})
	return res.RowsAffected, res.Error
}
