package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// Repository defines persistence operations for commission payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.CommissionPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CommissionPayment, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.CommissionPayment, error)
	List(ctx context.Context, organizerID string, filters Filters) ([]models.CommissionPayment, error)
	FindByIDs(ctx context.Context, organizerID string, ids []uuid.UUID) ([]models.CommissionPayment, error)
	ListByStatus(ctx context.Context, organizerID string, status enums.CommissionPaymentStatus) ([]models.CommissionPayment, error)
	ListPaidForAgent(ctx context.Context, organizerID, agentID string, from, to time.Time) ([]models.CommissionPayment, error)
	ListOrganizersWithStatus(ctx context.Context, status enums.CommissionPaymentStatus) ([]string, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from enums.CommissionPaymentStatus, updates map[string]any) (bool, error)
	RejectActiveDisputes(ctx context.Context, paymentID uuid.UUID, resolution, resolvedBy string, at time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TaxRateSource yields the organizer's configured tax rate.
type TaxRateSource interface {
	TaxRate(ctx context.Context, organizerID string) (decimal.Decimal, error)
}
