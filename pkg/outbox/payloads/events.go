package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// CommissionCreatedEvent announces a new pending payment.
type CommissionCreatedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	OrganizerID string    `json:"organizer_id"`
	AgentID     string    `json:"agent_id"`
	EventID     string    `json:"event_id"`
	NetAmount   string    `json:"net_amount"`
}

// CommissionPaidEvent is emitted once per payment when it settles.
type CommissionPaidEvent struct {
	PaymentID        uuid.UUID                     `json:"payment_id"`
	OrganizerID      string                        `json:"organizer_id"`
	AgentID          string                        `json:"agent_id"`
	NetAmount        string                        `json:"net_amount"`
	PaymentMethod    enums.CommissionPaymentMethod `json:"payment_method"`
	PaymentReference string                        `json:"payment_reference"`
	PaidAt           time.Time                     `json:"paid_at"`
	BatchID          *uuid.UUID                    `json:"batch_id,omitempty"`
}

// CommissionCancelledEvent is emitted when a payment is voided.
type CommissionCancelledEvent struct {
	PaymentID      uuid.UUID                     `json:"payment_id"`
	OrganizerID    string                        `json:"organizer_id"`
	PreviousStatus enums.CommissionPaymentStatus `json:"previous_status"`
	Reason         string                        `json:"reason,omitempty"`
}

// DisputeOpenedEvent signals that an agent contested a payment.
type DisputeOpenedEvent struct {
	DisputeID   uuid.UUID         `json:"dispute_id"`
	PaymentID   uuid.UUID         `json:"payment_id"`
	OrganizerID string            `json:"organizer_id"`
	DisputeType enums.DisputeType `json:"dispute_type"`
	SubmittedBy string            `json:"submitted_by"`
}

// DisputeResolvedEvent carries the final outcome of a dispute.
type DisputeResolvedEvent struct {
	DisputeID      uuid.UUID                     `json:"dispute_id"`
	PaymentID      uuid.UUID                     `json:"payment_id"`
	OrganizerID    string                        `json:"organizer_id"`
	Status         enums.DisputeStatus           `json:"status"`
	AdjustedAmount *string                       `json:"adjusted_amount,omitempty"`
	PaymentStatus  enums.CommissionPaymentStatus `json:"payment_status"`
}

// PayoutBatchEvent covers batch creation and both confirmation outcomes.
type PayoutBatchEvent struct {
	BatchID      uuid.UUID               `json:"batch_id"`
	OrganizerID  string                  `json:"organizer_id"`
	Reference    string                  `json:"reference"`
	Status       enums.PayoutBatchStatus `json:"status"`
	TotalAmount  string                  `json:"total_amount"`
	PaymentCount int                     `json:"payment_count"`
	PaymentIDs   []uuid.UUID             `json:"payment_ids"`
	Reason       string                  `json:"reason,omitempty"`
}
