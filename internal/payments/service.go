package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/internal/orglock"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
	"github.com/angelmondragon/commission-engine/pkg/metrics"
	"github.com/angelmondragon/commission-engine/pkg/outbox"
	"github.com/angelmondragon/commission-engine/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the payment record store: queries plus the mutations that move a
// payment through its lifecycle outside of disputes and batches.
type Service interface {
	Query(ctx context.Context, organizerID string, filters Filters) ([]models.CommissionPayment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.CommissionPayment, error)
	Create(ctx context.Context, organizerID string, input CreateInput) (*models.CommissionPayment, error)
	MarkAsPaid(ctx context.Context, id uuid.UUID, input MarkPaidInput) (*models.CommissionPayment, error)
	Cancel(ctx context.Context, id uuid.UUID, input CancelInput) (*models.CommissionPayment, error)
}

// ServiceParams carries the payment service dependencies.
type ServiceParams struct {
	Repository Repository
	Audit      audit.Service
	Outbox     outboxPublisher
	Tx         txRunner
	Locker     orglock.Locker
	TaxRates   TaxRateSource
	Metrics    *metrics.CommissionMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo     Repository
	audit    audit.Service
	outbox   outboxPublisher
	tx       txRunner
	locker   orglock.Locker
	taxRates TaxRateSource
	metrics  *metrics.CommissionMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("organizer locker required")
	}
	if params.TaxRates == nil {
		return nil, fmt.Errorf("tax rate source required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "payments", Output: io.Discard})
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repository,
		audit:    params.Audit,
		outbox:   params.Outbox,
		tx:       params.Tx,
		locker:   params.Locker,
		taxRates: params.TaxRates,
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

func (s *service) Query(ctx context.Context, organizerID string, filters Filters) ([]models.CommissionPayment, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, organizerID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.CommissionPayment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindDetailed(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) Create(ctx context.Context, organizerID string, input CreateInput) (payment *models.CommissionPayment, err error) {
	defer func() { s.count("create", err) }()

	organizerID = strings.TrimSpace(organizerID)
	if err := validateCreate(organizerID, input); err != nil {
		return nil, err
	}

	commission := RoundMoney(input.CommissionAmount)
	var tax decimal.Decimal
	if input.TaxAmount != nil {
		tax = RoundMoney(*input.TaxAmount)
	} else {
		rate, err := s.taxRates.TaxRate(ctx, organizerID)
		if err != nil {
			return nil, err
		}
		tax = RoundMoney(commission.Mul(rate))
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.CommissionMethodManual
	}

	payment = &models.CommissionPayment{
		ID:               uuid.New(),
		OrganizerID:      organizerID,
		AgentID:          strings.TrimSpace(input.AgentID),
		AgentName:        strings.TrimSpace(input.AgentName),
		EventID:          strings.TrimSpace(input.EventID),
		EventTitle:       strings.TrimSpace(input.EventTitle),
		CommissionAmount: commission,
		TaxAmount:        tax,
		NetAmount:        commission.Sub(tax),
		SalesCount:       input.SalesCount,
		PeriodStart:      input.PeriodStart.UTC(),
		PeriodEnd:        input.PeriodEnd.UTC(),
		Status:           enums.CommissionPaymentPending,
		PaymentMethod:    method,
		Notes:            optionalString(input.Notes),
	}
	if !payment.NetConsistent() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "net amount mismatch")
	}

	err = orglock.WithLock(ctx, s.locker, organizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
			if _, err := s.audit.Append(ctx, tx, audit.Entry{
				PaymentID: payment.ID,
				Action:    enums.CommissionAuditCreated,
				Actor:     input.Actor,
				NewStatus: payment.Status,
				Changes: map[string]any{
					"status":           payment.Status,
					"commissionAmount": MoneyString(payment.CommissionAmount),
					"taxAmount":        MoneyString(payment.TaxAmount),
					"netAmount":        MoneyString(payment.NetAmount),
					"paymentMethod":    payment.PaymentMethod,
				},
				Notes: "Commission payment created",
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCommissionCreated,
				AggregateType: enums.AggregateCommissionPayment,
				AggregateID:   payment.ID,
				Actor:         input.Actor.Ref(),
				OccurredAt:    s.now().UTC(),
				Data: payloads.CommissionCreatedEvent{
					PaymentID:   payment.ID,
					OrganizerID: payment.OrganizerID,
					AgentID:     payment.AgentID,
					EventID:     payment.EventID,
					NetAmount:   MoneyString(payment.NetAmount),
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) MarkAsPaid(ctx context.Context, id uuid.UUID, input MarkPaidInput) (result *models.CommissionPayment, err error) {
	defer func() { s.count("mark_paid", err) }()

	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if strings.TrimSpace(input.Actor.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processedBy is required")
	}

	current, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	err = orglock.WithLock(ctx, s.locker, current.OrganizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			payment, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			switch payment.Status {
			case enums.CommissionPaymentPaid:
				return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "payment already marked as paid").
					WithDetails(map[string]any{"paymentId": payment.ID})
			case enums.CommissionPaymentDisputed:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "disputed payments cannot be paid until the dispute is resolved")
			}
			if err := ValidateTransition(payment.Status, enums.CommissionPaymentPaid); err != nil {
				return err
			}

			now := s.now().UTC()
			processedBy := strings.TrimSpace(input.Actor.ID)
			reference := optionalString(input.Reference)
			notes := optionalString(input.Notes)
			updates := map[string]any{
				"status":            enums.CommissionPaymentPaid,
				"payment_method":    input.Method,
				"payment_reference": reference,
				"payment_date":      now,
				"processed_by":      processedBy,
			}
			if notes != nil {
				updates["notes"] = *notes
			}
			ok, err := repo.TransitionStatus(ctx, payment.ID, payment.Status, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
			}

			if _, err := s.audit.Append(ctx, tx, audit.Entry{
				PaymentID:      payment.ID,
				Action:         enums.CommissionAuditPaidManually,
				Actor:          input.Actor,
				PreviousStatus: audit.StatusPtr(payment.Status),
				NewStatus:      enums.CommissionPaymentPaid,
				Changes: map[string]any{
					"status":           enums.CommissionPaymentPaid,
					"paymentMethod":    input.Method,
					"paymentReference": strings.TrimSpace(input.Reference),
					"paymentDate":      now.Format(time.RFC3339),
					"notes":            strings.TrimSpace(input.Notes),
				},
				Notes: input.Notes,
			}); err != nil {
				return err
			}

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCommissionPaid,
				AggregateType: enums.AggregateCommissionPayment,
				AggregateID:   payment.ID,
				Actor:         input.Actor.Ref(),
				OccurredAt:    now,
				Data: payloads.CommissionPaidEvent{
					PaymentID:        payment.ID,
					OrganizerID:      payment.OrganizerID,
					AgentID:          payment.AgentID,
					NetAmount:        MoneyString(payment.NetAmount),
					PaymentMethod:    input.Method,
					PaymentReference: strings.TrimSpace(input.Reference),
					PaidAt:           now,
					BatchID:          payment.BatchID,
				},
			}); err != nil {
				return err
			}

			result, err = s.load(ctx, repo, id)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddPaid(string(result.PaymentMethod), result.NetAmount)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":   result.ID.String(),
		"organizer_id": result.OrganizerID,
		"actor_id":     input.Actor.ID,
	})
	s.logg.Info(logCtx, "commission payment marked paid")
	return result, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, input CancelInput) (result *models.CommissionPayment, err error) {
	defer func() { s.count("cancel", err) }()

	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if strings.TrimSpace(input.Actor.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancelledBy is required")
	}

	current, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	err = orglock.WithLock(ctx, s.locker, current.OrganizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			payment, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			if err := ValidateTransition(payment.Status, enums.CommissionPaymentCancelled); err != nil {
				return err
			}

			now := s.now().UTC()
			ok, err := repo.TransitionStatus(ctx, payment.ID, payment.Status, map[string]any{
				"status": enums.CommissionPaymentCancelled,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
			}

			changes := map[string]any{"status": enums.CommissionPaymentCancelled}
			if payment.Status == enums.CommissionPaymentDisputed {
				closed, err := repo.RejectActiveDisputes(ctx, payment.ID, "Payment cancelled", strings.TrimSpace(input.Actor.ID), now)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close disputes")
				}
				changes["disputesClosed"] = closed
			}

			notes := "Payment cancelled"
			if reason := strings.TrimSpace(input.Reason); reason != "" {
				notes = "Payment cancelled: " + reason
			}
			if _, err := s.audit.Append(ctx, tx, audit.Entry{
				PaymentID:      payment.ID,
				Action:         enums.CommissionAuditCancelled,
				Actor:          input.Actor,
				PreviousStatus: audit.StatusPtr(payment.Status),
				NewStatus:      enums.CommissionPaymentCancelled,
				Changes:        changes,
				Notes:          notes,
			}); err != nil {
				return err
			}

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCommissionCancelled,
				AggregateType: enums.AggregateCommissionPayment,
				AggregateID:   payment.ID,
				Actor:         input.Actor.Ref(),
				OccurredAt:    now,
				Data: payloads.CommissionCancelledEvent{
					PaymentID:      payment.ID,
					OrganizerID:    payment.OrganizerID,
					PreviousStatus: payment.Status,
					Reason:         strings.TrimSpace(input.Reason),
				},
			}); err != nil {
				return err
			}

			result, err = s.load(ctx, repo, id)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.CommissionPayment, error) {
	payment, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) count(operation string, err error) {
	s.metrics.IncOperation(operation, metrics.Outcome(err, IsRejection))
}

// IsRejection reports whether err is a business-rule refusal rather than a fault.
func IsRejection(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeAlreadyPaid,
		pkgerrors.CodeIneligible, pkgerrors.CodeStateConflict, pkgerrors.CodeConflict:
		return true
	}
	return false
}

func validateCreate(organizerID string, input CreateInput) error {
	switch {
	case organizerID == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	case strings.TrimSpace(input.AgentID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "agentId is required")
	case strings.TrimSpace(input.AgentName) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "agentName is required")
	case strings.TrimSpace(input.EventID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "eventId is required")
	case strings.TrimSpace(input.EventTitle) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "eventTitle is required")
	case input.CommissionAmount.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "commissionAmount must not be negative")
	case input.SalesCount < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "salesCount must not be negative")
	case input.PeriodStart.IsZero() || input.PeriodEnd.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "periodStart and periodEnd are required")
	case input.PeriodStart.After(input.PeriodEnd):
		return pkgerrors.New(pkgerrors.CodeValidation, "periodStart must not be after periodEnd")
	case input.PaymentMethod != "" && !input.PaymentMethod.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	case strings.TrimSpace(input.Actor.ID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "createdBy is required")
	}
	if input.TaxAmount != nil {
		if input.TaxAmount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "taxAmount must not be negative")
		}
		if input.TaxAmount.GreaterThan(input.CommissionAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "taxAmount must not exceed commissionAmount")
		}
	}
	return nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
