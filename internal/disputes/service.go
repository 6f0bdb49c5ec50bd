package disputes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/internal/orglock"
	"github.com/angelmondragon/commission-engine/internal/payments"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service opens, investigates and resolves disputes, keeping the parent
// payment status in step.
type Service interface {
	CreateDispute(ctx context.Context, paymentID uuid.UUID, input CreateInput) (*models.CommissionDispute, error)
	StartInvestigation(ctx context.Context, paymentID, disputeID uuid.UUID, actor audit.Actor) (*models.CommissionDispute, error)
	ResolveDispute(ctx context.Context, paymentID, disputeID uuid.UUID, input ResolveInput) (*Result, error)
	List(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionDispute, error)
}

// ServiceParams carries the dispute service dependencies.
type ServiceParams struct {
	Repository Repository
	Payments   payments.Repository
	Audit      audit.Service
	Outbox     outboxPublisher
	Tx         txRunner
	Locker     orglock.Locker
	Metrics    *metrics.CommissionMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo     Repository
	payments payments.Repository
	audit    audit.Service
	outbox   outboxPublisher
	tx       txRunner
	locker   orglock.Locker
	metrics  *metrics.CommissionMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the dispute service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("disputes repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Locker == nil:
		return nil, fmt.Errorf("organizer locker required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "disputes", Output: io.Discard})
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repository,
		payments: params.Payments,
		audit:    params.Audit,
		outbox:   params.Outbox,
		tx:       params.Tx,
		locker:   params.Locker,
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

func (s *service) CreateDispute(ctx context.Context, paymentID uuid.UUID, input CreateInput) (result *models.CommissionDispute, err error) {
	defer func() { s.count("create_dispute", err) }()

	description := strings.TrimSpace(input.Description)
	submittedBy := strings.TrimSpace(input.Actor.ID)
	switch {
	case paymentID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	case !input.DisputeType.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute type")
	case description == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	case submittedBy == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "submittedBy is required")
	}

	current, err := s.loadPayment(ctx, s.payments, paymentID)
	if err != nil {
		return nil, err
	}

	err = orglock.WithLock(ctx, s.locker, current.OrganizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			paymentRepo := s.payments.WithTx(tx)
			repo := s.repo.WithTx(tx)

			payment, err := s.loadPayment(ctx, paymentRepo, paymentID)
			if err != nil {
				return err
			}
			if payment.Status == enums.CommissionPaymentCancelled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled payments cannot be disputed")
			}
			if err := payments.ValidateTransition(payment.Status, enums.CommissionPaymentDisputed); err != nil {
				return err
			}

			prior := payment.Status
			if payment.Status == enums.CommissionPaymentDisputed {
				prior, err = s.episodePriorStatus(ctx, repo, payment.ID)
				if err != nil {
					return err
				}
			}

			now := s.now().UTC()
			dispute := &models.CommissionDispute{
				ID:                  uuid.New(),
				PaymentID:           payment.ID,
				DisputeType:         input.DisputeType,
				Description:         description,
				SubmittedBy:         submittedBy,
				SubmittedDate:       now,
				Status:              enums.DisputeStatusOpen,
				OriginalAmount:      payment.CommissionAmount,
				PriorPaymentStatus:  prior,
				SupportingDocuments: datatypes.JSONSlice[string](cleanDocuments(input.SupportingDocuments)),
			}
			if err := repo.Create(ctx, dispute); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
			}

			ok, err := paymentRepo.TransitionStatus(ctx, payment.ID, payment.Status, map[string]any{
				"status": enums.CommissionPaymentDisputed,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment disputed")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
			}

			if _, err := s.audit.Append(ctx, tx, audit.Entry{
				PaymentID:      payment.ID,
				Action:         enums.CommissionAuditDisputed,
				Actor:          input.Actor,
				PreviousStatus: audit.StatusPtr(payment.Status),
				NewStatus:      enums.CommissionPaymentDisputed,
				Changes: map[string]any{
					"status":  enums.CommissionPaymentDisputed,
					"dispute": dispute.ID.String(),
				},
				Notes: "Dispute created: " + description,
			}); err != nil {
				return err
			}

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDisputeOpened,
				AggregateType: enums.AggregateCommissionPayment,
				AggregateID:   payment.ID,
				Actor:         input.Actor.Ref(),
				OccurredAt:    now,
				Data: payloads.DisputeOpenedEvent{
					DisputeID:   dispute.ID,
					PaymentID:   payment.ID,
					OrganizerID: payment.OrganizerID,
					DisputeType: dispute.DisputeType,
					SubmittedBy: submittedBy,
				},
			}); err != nil {
				return err
			}

			result, err = s.loadDispute(ctx, repo, payment.ID, dispute.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":   paymentID.String(),
		"dispute_id":   result.ID.String(),
		"organizer_id": current.OrganizerID,
	})
	s.logg.Info(logCtx, "commission dispute opened")
	return result, nil
}

func (s *service) StartInvestigation(ctx context.Context, paymentID, disputeID uuid.UUID, actor audit.Actor) (result *models.CommissionDispute, err error) {
	defer func() { s.count("start_investigation", err) }()

	if paymentID == uuid.Nil || disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id and dispute id required")
	}
	if strings.TrimSpace(actor.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	current, err := s.loadPayment(ctx, s.payments, paymentID)
	if err != nil {
		return nil, err
	}

	err = orglock.WithLock(ctx, s.locker, current.OrganizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			payment, err := s.loadPayment(ctx, s.payments.WithTx(tx), paymentID)
			if err != nil {
				return err
			}
			dispute, err := s.loadDispute(ctx, repo, paymentID, disputeID)
			if err != nil {
				return err
			}
			if dispute.Status != enums.DisputeStatusOpen {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only open disputes can move to investigation").
					WithDetails(map[string]any{"status": dispute.Status})
			}

			ok, err := repo.TransitionStatus(ctx, dispute.ID, enums.DisputeStatusOpen, map[string]any{
				"status": enums.DisputeStatusInvestigating,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start investigation")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "dispute changed concurrently")
			}

			if _, err := s.audit.Append(ctx, tx, audit.Entry{
				PaymentID:      payment.ID,
				Action:         enums.CommissionAuditUpdated,
				Actor:          actor,
				PreviousStatus: audit.StatusPtr(payment.Status),
				NewStatus:      payment.Status,
				Changes: map[string]any{
					"dispute":       dispute.ID.String(),
					"disputeStatus": enums.DisputeStatusInvestigating,
				},
				Notes: "Dispute under investigation",
			}); err != nil {
				return err
			}

			result, err = s.loadDispute(ctx, repo, paymentID, disputeID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ResolveDispute(ctx context.Context, paymentID, disputeID uuid.UUID, input ResolveInput) (result *Result, err error) {
	defer func() { s.count("resolve_dispute", err) }()

	resolution := strings.TrimSpace(input.Resolution)
	resolvedBy := strings.TrimSpace(input.Actor.ID)
	switch {
	case paymentID == uuid.Nil || disputeID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id and dispute id required")
	case input.Status != enums.DisputeStatusResolved && input.Status != enums.DisputeStatusRejected:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be resolved or rejected")
	case resolution == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution is required")
	case resolvedBy == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolvedBy is required")
	}
	var adjusted *decimal.Decimal
	if input.AdjustedAmount != nil {
		if input.Status == enums.DisputeStatusRejected {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustedAmount is only allowed when resolving")
		}
		if input.AdjustedAmount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustedAmount must not be negative")
		}
		rounded := payments.RoundMoney(*input.AdjustedAmount)
		adjusted = &rounded
	}

	current, err := s.loadPayment(ctx, s.payments, paymentID)
	if err != nil {
		return nil, err
	}

	err = orglock.WithLock(ctx, s.locker, current.OrganizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			paymentRepo := s.payments.WithTx(tx)
			repo := s.repo.WithTx(tx)

			payment, err := s.loadPayment(ctx, paymentRepo, paymentID)
			if err != nil {
				return err
			}
			dispute, err := s.loadDispute(ctx, repo, paymentID, disputeID)
			if err != nil {
				return err
			}
			if dispute.Status.IsFinal() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already closed").
					WithDetails(map[string]any{"status": dispute.Status})
			}
			if payment.Status != enums.CommissionPaymentDisputed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not disputed").
					WithDetails(map[string]any{"status": payment.Status})
			}
			if adjusted != nil && adjusted.LessThan(payment.TaxAmount) {
				return pkgerrors.New(pkgerrors.CodeValidation, "adjustedAmount must not be lower than the tax amount").
					WithDetails(map[string]any{"taxAmount": payments.MoneyString(payment.TaxAmount)})
			}

			now := s.now().UTC()
			disputeUpdates := map[string]any{
				"status":        input.Status,
				"resolution":    resolution,
				"resolved_by":   resolvedBy,
				"resolved_date": now,
			}
			if adjusted != nil {
				disputeUpdates["adjusted_amount"] = decimal.NewNullDecimal(*adjusted)
			}
			ok, err := repo.TransitionStatus(ctx, dispute.ID, dispute.Status, disputeUpdates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "dispute changed concurrently")
			}

			stillActive, err := repo.ListActive(ctx, payment.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active disputes")
			}

			// an accepted dispute sends the episode back to pending even if a
			// later dispute is rejected
			if input.Status == enums.DisputeStatusResolved && len(stillActive) > 0 {
				if err := repo.SetActivePriorStatus(ctx, payment.ID, enums.CommissionPaymentPending); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carry dispute outcome")
				}
			}

			target := nextPaymentStatus(input.Status, dispute.PriorPaymentStatus, len(stillActive) > 0)
			if err := payments.ValidateTransition(payment.Status, target); err != nil {
				return err
			}

			paymentUpdates := map[string]any{"status": target}
			if adjusted != nil {
				commission := *adjusted
				net := commission.Sub(payment.TaxAmount)
				check := models.CommissionPayment{CommissionAmount: commission, TaxAmount: payment.TaxAmount, NetAmount: net}
				if !check.NetConsistent() || net.IsNegative() {
					return pkgerrors.New(pkgerrors.CodeInternal, "net amount mismatch")
				}
				paymentUpdates["commission_amount"] = commission
				paymentUpdates["net_amount"] = net
			}
			if target == enums.CommissionPaymentPending {
				paymentUpdates["batch_id"] = nil
			}
			ok, err = paymentRepo.TransitionStatus(ctx, payment.ID, payment.Status, paymentUpdates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update disputed payment")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
			}

			var adjustedString *string
			changes := map[string]any{
				"dispute":    dispute.ID.String(),
				"resolution": resolution,
				"status":     target,
			}
			if adjusted != nil {
				value := payments.MoneyString(*adjusted)
				adjustedString = &value
				changes["adjustedAmount"] = value
			}
			if _, err := s.audit.Append(ctx, tx, audit.Entry{
				PaymentID:      payment.ID,
				Action:         enums.CommissionAuditResolved,
				Actor:          input.Actor,
				PreviousStatus: audit.StatusPtr(payment.Status),
				NewStatus:      target,
				Changes:        changes,
				Notes:          fmt.Sprintf("Dispute %s: %s", input.Status, resolution),
			}); err != nil {
				return err
			}

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDisputeResolved,
				AggregateType: enums.AggregateCommissionPayment,
				AggregateID:   payment.ID,
				Actor:         input.Actor.Ref(),
				OccurredAt:    now,
				Data: payloads.DisputeResolvedEvent{
					DisputeID:      dispute.ID,
					PaymentID:      payment.ID,
					OrganizerID:    payment.OrganizerID,
					Status:         input.Status,
					AdjustedAmount: adjustedString,
					PaymentStatus:  target,
				},
			}); err != nil {
				return err
			}

			resolved, err := s.loadDispute(ctx, repo, paymentID, disputeID)
			if err != nil {
				return err
			}
			updated, err := s.loadPayment(ctx, paymentRepo, paymentID)
			if err != nil {
				return err
			}
			result = &Result{Dispute: resolved, Payment: updated}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":     paymentID.String(),
		"dispute_id":     disputeID.String(),
		"dispute_status": string(input.Status),
		"payment_status": string(result.Payment.Status),
	})
	s.logg.Info(logCtx, "commission dispute closed")
	return result, nil
}

func (s *service) List(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionDispute, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	rows, err := s.repo.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return rows, nil
}

// nextPaymentStatus picks where a disputed payment goes once one of its
// disputes closes.
func nextPaymentStatus(outcome enums.DisputeStatus, prior enums.CommissionPaymentStatus, othersActive bool) enums.CommissionPaymentStatus {
	if othersActive {
		return enums.CommissionPaymentDisputed
	}
	if outcome == enums.DisputeStatusResolved {
		return enums.CommissionPaymentPending
	}
	switch prior {
	case enums.CommissionPaymentPaid:
		return enums.CommissionPaymentPaid
	default:
		// a processing claim is lost once the payment left its batch
		return enums.CommissionPaymentPending
	}
}

// episodePriorStatus returns the status the payment had before its current
// dispute episode began.
func (s *service) episodePriorStatus(ctx context.Context, repo Repository, paymentID uuid.UUID) (enums.CommissionPaymentStatus, error) {
	active, err := repo.ListActive(ctx, paymentID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active disputes")
	}
	if len(active) == 0 {
		return enums.CommissionPaymentPending, nil
	}
	return active[0].PriorPaymentStatus, nil
}

func (s *service) loadPayment(ctx context.Context, repo payments.Repository, id uuid.UUID) (*models.CommissionPayment, error) {
	payment, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) loadDispute(ctx context.Context, repo Repository, paymentID, disputeID uuid.UUID) (*models.CommissionDispute, error) {
	dispute, err := repo.FindForPayment(ctx, paymentID, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) count(operation string, err error) {
	s.metrics.IncOperation(operation, metrics.Outcome(err, payments.IsRejection))
}

func cleanDocuments(docs []string) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		if trimmed := strings.TrimSpace(doc); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
