package payouts

import (
	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// CreateInput describes how a new batch is disbursed. Actor.ID is stored as
// processedBy.
type CreateInput struct {
	PaymentMethod enums.PayoutMethod
	Actor         audit.Actor
}

// ConfirmInput reports the disbursement outcome for a processing batch.
type ConfirmInput struct {
	Status                enums.PayoutBatchStatus
	FailureReason         string
	DisbursementReference string
	Actor                 audit.Actor
}

// Batch is a payout batch together with its member payments.
type Batch struct {
	*models.PayoutBatch
	Payments []models.CommissionPayment
}
