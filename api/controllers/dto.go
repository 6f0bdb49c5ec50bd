package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/payouts"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

type paymentResponse struct {
	ID               uuid.UUID                     `json:"id"`
	OrganizerID      string                        `json:"organizer_id"`
	AgentID          string                        `json:"agent_id"`
	AgentName        string                        `json:"agent_name"`
	EventID          string                        `json:"event_id"`
	EventTitle       string                        `json:"event_title"`
	CommissionAmount string                        `json:"commission_amount"`
	TaxAmount        string                        `json:"tax_amount"`
	NetAmount        string                        `json:"net_amount"`
	SalesCount       int                           `json:"sales_count"`
	PeriodStart      time.Time                     `json:"period_start"`
	PeriodEnd        time.Time                     `json:"period_end"`
	Status           enums.CommissionPaymentStatus `json:"status"`
	PaymentMethod    enums.CommissionPaymentMethod `json:"payment_method"`
	PaymentDate      *time.Time                    `json:"payment_date,omitempty"`
	PaymentReference *string                       `json:"payment_reference,omitempty"`
	Notes            *string                       `json:"notes,omitempty"`
	ProcessedBy      *string                       `json:"processed_by,omitempty"`
	BatchID          *uuid.UUID                    `json:"batch_id,omitempty"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
	AuditTrail       []auditEntryResponse          `json:"audit_trail,omitempty"`
	Disputes         []disputeResponse             `json:"disputes,omitempty"`
	TaxDocumentIDs   []uuid.UUID                   `json:"tax_document_ids,omitempty"`
}

type auditEntryResponse struct {
	ID             uuid.UUID                      `json:"id"`
	Sequence       int                            `json:"sequence"`
	Timestamp      time.Time                      `json:"timestamp"`
	Action         enums.CommissionAuditAction    `json:"action"`
	UserID         string                         `json:"user_id"`
	UserName       string                         `json:"user_name"`
	PreviousStatus *enums.CommissionPaymentStatus `json:"previous_status,omitempty"`
	NewStatus      enums.CommissionPaymentStatus  `json:"new_status"`
	Changes        map[string]any                 `json:"changes"`
	Notes          *string                        `json:"notes,omitempty"`
	IPAddress      *string                        `json:"ip_address,omitempty"`
}

type disputeResponse struct {
	ID                  uuid.UUID           `json:"id"`
	PaymentID           uuid.UUID           `json:"payment_id"`
	DisputeType         enums.DisputeType   `json:"dispute_type"`
	Description         string              `json:"description"`
	SubmittedBy         string              `json:"submitted_by"`
	SubmittedDate       time.Time           `json:"submitted_date"`
	Status              enums.DisputeStatus `json:"status"`
	OriginalAmount      string              `json:"original_amount"`
	SupportingDocuments []string            `json:"supporting_documents"`
	Resolution          *string             `json:"resolution,omitempty"`
	ResolvedBy          *string             `json:"resolved_by,omitempty"`
	ResolvedDate        *time.Time          `json:"resolved_date,omitempty"`
	AdjustedAmount      *string             `json:"adjusted_amount,omitempty"`
}

type batchResponse struct {
	ID                    uuid.UUID               `json:"id"`
	OrganizerID           string                  `json:"organizer_id"`
	Reference             string                  `json:"reference"`
	BatchDate             time.Time               `json:"batch_date"`
	TotalAmount           string                  `json:"total_amount"`
	PaymentCount          int                     `json:"payment_count"`
	Status                enums.PayoutBatchStatus `json:"status"`
	PaymentMethod         enums.PayoutMethod      `json:"payment_method"`
	ProcessedBy           string                  `json:"processed_by"`
	CompletedDate         *time.Time              `json:"completed_date,omitempty"`
	FailureReason         *string                 `json:"failure_reason,omitempty"`
	DisbursementReference *string                 `json:"disbursement_reference,omitempty"`
	PaymentIDs            []uuid.UUID             `json:"payment_ids"`
	Payments              []paymentResponse       `json:"payments,omitempty"`
}

type paymentConfigResponse struct {
	OrganizerID          string                    `json:"organizer_id"`
	PaymentSchedule      enums.PaymentSchedule     `json:"payment_schedule"`
	MinimumPayout        string                    `json:"minimum_payout"`
	TaxRate              string                    `json:"tax_rate"`
	DefaultPaymentMethod enums.DefaultPayoutMethod `json:"default_payment_method"`
	AutoPayEnabled       bool                      `json:"auto_pay_enabled"`
	RequireApproval      bool                      `json:"require_approval"`
	PaymentDay           int                       `json:"payment_day"`
	BankAccountName      *string                   `json:"bank_account_name,omitempty"`
	BankRoutingNumber    *string                   `json:"bank_routing_number,omitempty"`
	BankAccountNumber    *string                   `json:"bank_account_number,omitempty"`
	PayPalClientID       *string                   `json:"paypal_client_id,omitempty"`
	PayPalSandboxMode    *bool                     `json:"paypal_sandbox_mode,omitempty"`
	Stored               bool                      `json:"stored"`
}

type taxDocumentResponse struct {
	ID               uuid.UUID             `json:"id"`
	OrganizerID      string                `json:"organizer_id"`
	AgentID          string                `json:"agent_id"`
	DocumentType     enums.TaxDocumentType `json:"document_type"`
	Year             int                   `json:"year"`
	Quarter          *int                  `json:"quarter,omitempty"`
	FilePath         string                `json:"file_path"`
	GeneratedDate    time.Time             `json:"generated_date"`
	GeneratedBy      string                `json:"generated_by"`
	TotalCommissions string                `json:"total_commissions"`
	TotalTax         string                `json:"total_tax"`
	PaymentCount     int                   `json:"payment_count"`
}

func newPaymentResponse(p models.CommissionPayment) paymentResponse {
	resp := paymentResponse{
		ID:               p.ID,
		OrganizerID:      p.OrganizerID,
		AgentID:          p.AgentID,
		AgentName:        p.AgentName,
		EventID:          p.EventID,
		EventTitle:       p.EventTitle,
		CommissionAmount: payments.MoneyString(p.CommissionAmount),
		TaxAmount:        payments.MoneyString(p.TaxAmount),
		NetAmount:        payments.MoneyString(p.NetAmount),
		SalesCount:       p.SalesCount,
		PeriodStart:      p.PeriodStart,
		PeriodEnd:        p.PeriodEnd,
		Status:           p.Status,
		PaymentMethod:    p.PaymentMethod,
		PaymentDate:      p.PaymentDate,
		PaymentReference: p.PaymentReference,
		Notes:            p.Notes,
		ProcessedBy:      p.ProcessedBy,
		BatchID:          p.BatchID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, entry := range p.AuditTrail {
		resp.AuditTrail = append(resp.AuditTrail, newAuditEntryResponse(entry))
	}
	for _, d := range p.Disputes {
		resp.Disputes = append(resp.Disputes, newDisputeResponse(d))
	}
	for _, doc := range p.TaxDocuments {
		resp.TaxDocumentIDs = append(resp.TaxDocumentIDs, doc.ID)
	}
	return resp
}

func newPaymentResponses(rows []models.CommissionPayment) []paymentResponse {
	out := make([]paymentResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, newPaymentResponse(p))
	}
	return out
}

func newAuditEntryResponse(e models.CommissionAuditEntry) auditEntryResponse {
	changes := map[string]any(e.Changes)
	if changes == nil {
		changes = map[string]any{}
	}
	return auditEntryResponse{
		ID:             e.ID,
		Sequence:       e.Sequence,
		Timestamp:      e.OccurredAt,
		Action:         e.Action,
		UserID:         e.UserID,
		UserName:       e.UserName,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		Changes:        changes,
		Notes:          e.Notes,
		IPAddress:      e.IPAddress,
	}
}

func newDisputeResponse(d models.CommissionDispute) disputeResponse {
	docs := []string(d.SupportingDocuments)
	if docs == nil {
		docs = []string{}
	}
	resp := disputeResponse{
		ID:                  d.ID,
		PaymentID:           d.PaymentID,
		DisputeType:         d.DisputeType,
		Description:         d.Description,
		SubmittedBy:         d.SubmittedBy,
		SubmittedDate:       d.SubmittedDate,
		Status:              d.Status,
		OriginalAmount:      payments.MoneyString(d.OriginalAmount),
		SupportingDocuments: docs,
		Resolution:          d.Resolution,
		ResolvedBy:          d.ResolvedBy,
		ResolvedDate:        d.ResolvedDate,
	}
	if d.AdjustedAmount.Valid {
		resp.AdjustedAmount = moneyPtr(d.AdjustedAmount.Decimal)
	}
	return resp
}

func newBatchResponse(b models.PayoutBatch, members []models.CommissionPayment) batchResponse {
	ids := b.PaymentIDs()
	if len(ids) == 0 && len(members) > 0 {
		for _, p := range members {
			ids = append(ids, p.ID)
		}
	}
	resp := batchResponse{
		ID:                    b.ID,
		OrganizerID:           b.OrganizerID,
		Reference:             b.Reference,
		BatchDate:             b.BatchDate,
		TotalAmount:           payments.MoneyString(b.TotalAmount),
		PaymentCount:          b.PaymentCount,
		Status:                b.Status,
		PaymentMethod:         b.PaymentMethod,
		ProcessedBy:           b.ProcessedBy,
		CompletedDate:         b.CompletedDate,
		FailureReason:         b.FailureReason,
		DisbursementReference: b.DisbursementReference,
		PaymentIDs:            ids,
	}
	if len(members) > 0 {
		resp.Payments = newPaymentResponses(members)
	}
	return resp
}

func newBatchDetail(batch *payouts.Batch) batchResponse {
	return newBatchResponse(*batch.PayoutBatch, batch.Payments)
}

func newPaymentConfigResponse(c models.PaymentConfiguration, stored bool) paymentConfigResponse {
	return paymentConfigResponse{
		OrganizerID:          c.OrganizerID,
		PaymentSchedule:      c.PaymentSchedule,
		MinimumPayout:        payments.MoneyString(c.MinimumPayout),
		TaxRate:              c.TaxRate.StringFixed(4),
		DefaultPaymentMethod: c.DefaultPaymentMethod,
		AutoPayEnabled:       c.AutoPayEnabled,
		RequireApproval:      c.RequireApproval,
		PaymentDay:           c.PaymentDay,
		BankAccountName:      c.BankAccountName,
		BankRoutingNumber:    c.BankRoutingNumber,
		BankAccountNumber:    c.BankAccountNumber,
		PayPalClientID:       c.PayPalClientID,
		PayPalSandboxMode:    c.PayPalSandboxMode,
		Stored:               stored,
	}
}

func newTaxDocumentResponse(d models.TaxDocument) taxDocumentResponse {
	return taxDocumentResponse{
		ID:               d.ID,
		OrganizerID:      d.OrganizerID,
		AgentID:          d.AgentID,
		DocumentType:     d.DocumentType,
		Year:             d.Year,
		Quarter:          d.Quarter,
		FilePath:         d.FilePath,
		GeneratedDate:    d.GeneratedDate,
		GeneratedBy:      d.GeneratedBy,
		TotalCommissions: payments.MoneyString(d.TotalCommissions),
		TotalTax:         payments.MoneyString(d.TotalTax),
		PaymentCount:     d.PaymentCount,
	}
}

func moneyPtr(amount decimal.Decimal) *string {
	s := payments.MoneyString(amount)
	return &s
}
