package disputes

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// CreateInput opens a dispute. Actor.ID is stored as submittedBy.
type CreateInput struct {
	DisputeType         enums.DisputeType
	Description         string
	SupportingDocuments []string
	Actor               audit.Actor
}

// ResolveInput closes a dispute. Status must be resolved or rejected; an
// adjusted amount is only accepted with resolved.
type ResolveInput struct {
	Status         enums.DisputeStatus
	Resolution     string
	AdjustedAmount *decimal.Decimal
	Actor          audit.Actor
}

// Result pairs a dispute with its payment as stored after the operation.
type Result struct {
	Dispute *models.CommissionDispute
	Payment *models.CommissionPayment
}
