package payouts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

const referencePrefix = "PB-"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service groups pending payments into payout batches and settles them.
type Service interface {
	CreateBatch(ctx context.Context, organizerID string, paymentIDs []uuid.UUID, input CreateInput) (*Batch, error)
	ConfirmBatch(ctx context.Context, batchID uuid.UUID, input ConfirmInput) (*Batch, error)
	ListBatches(ctx context.Context, organizerID string) ([]models.PayoutBatch, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error)
}

// ServiceParams carries the payout service dependencies. Node generates batch
// references; a node with id 1 is created when nil.
type ServiceParams struct {
	Repository Repository
	Payments   payments.Repository
	Audit      audit.Service
	Outbox     outboxPublisher
	Tx         txRunner
	Locker     orglock.Locker
	Node       *snowflake.Node
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
	node     *snowflake.Node
	metrics  *metrics.CommissionMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payout batch service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("payouts repository required")
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
	node := params.Node
	if node == nil {
		var err error
		node, err = snowflake.NewNode(1)
		if err != nil {
			return nil, fmt.Errorf("snowflake node: %w", err)
		}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "payouts", Output: io.Discard})
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
		node:     node,
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

func (s *service) CreateBatch(ctx context.Context, organizerID string, paymentIDs []uuid.UUID, input CreateInput) (result *Batch, err error) {
	defer func() { s.count("create_batch", err) }()

	organizerID = strings.TrimSpace(organizerID)
	processedBy := strings.TrimSpace(input.Actor.ID)
	switch {
	case organizerID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	case len(paymentIDs) == 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIds must not be empty")
	case !input.PaymentMethod.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	case processedBy == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processedBy is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(paymentIDs))
	for _, id := range paymentIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIds must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIds must not contain duplicates").
				WithDetails(map[string]any{"paymentId": id})
		}
		seen[id] = struct{}{}
	}

	var lockWait time.Duration
	start := time.Now()
	err = orglock.WithLock(ctx, s.locker, organizerID, func(ctx context.Context) error {
		lockWait = time.Since(start)
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			paymentRepo := s.payments.WithTx(tx)
			repo := s.repo.WithTx(tx)

			found, err := paymentRepo.FindByIDs(ctx, organizerID, paymentIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch payments")
			}
			byID := make(map[uuid.UUID]models.CommissionPayment, len(found))
			for _, p := range found {
				if p.Status == enums.CommissionPaymentPending {
					byID[p.ID] = p
				}
			}
			if len(byID) != len(paymentIDs) {
				return ineligible(paymentIDs, byID)
			}

			now := s.now().UTC()
			batch := &models.PayoutBatch{
				ID:            uuid.New(),
				OrganizerID:   organizerID,
				Reference:     referencePrefix + s.node.Generate().String(),
				BatchDate:     now,
				Status:        enums.PayoutBatchProcessing,
				PaymentMethod: input.PaymentMethod,
				ProcessedBy:   processedBy,
				PaymentCount:  len(paymentIDs),
			}
			total := decimal.Zero
			members := make([]models.CommissionPayment, 0, len(paymentIDs))
			for _, id := range paymentIDs {
				p := byID[id]
				total = total.Add(p.NetAmount)
				members = append(members, p)
				batch.Items = append(batch.Items, models.PayoutBatchItem{PaymentID: id, NetAmount: p.NetAmount})
			}
			batch.TotalAmount = payments.RoundMoney(total)

			if err := repo.Create(ctx, batch); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout batch")
			}

			for _, p := range members {
				ok, err := paymentRepo.TransitionStatus(ctx, p.ID, enums.CommissionPaymentPending, map[string]any{
					"status":   enums.CommissionPaymentProcessing,
					"batch_id": batch.ID,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment for batch")
				}
				if !ok {
					return pkgerrors.New(pkgerrors.CodeIneligible, "payment is no longer pending").
						WithDetails(map[string]any{"paymentIds": []uuid.UUID{p.ID}})
				}
				if _, err := s.audit.Append(ctx, tx, audit.Entry{
					PaymentID:      p.ID,
					Action:         enums.CommissionAuditUpdated,
					Actor:          input.Actor,
					PreviousStatus: audit.StatusPtr(enums.CommissionPaymentPending),
					NewStatus:      enums.CommissionPaymentProcessing,
					Changes: map[string]any{
						"status":  enums.CommissionPaymentProcessing,
						"batchId": batch.ID.String(),
					},
					Notes: "Added to payout batch " + batch.Reference,
				}); err != nil {
					return err
				}
			}

			if err := s.emitBatch(ctx, tx, enums.EventPayoutBatchCreated, batch, input.Actor, now, ""); err != nil {
				return err
			}

			stored, err := repo.FindByID(ctx, batch.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout batch")
			}
			result, err = s.withMembers(ctx, paymentRepo, stored)
			return err
		})
	})
	s.metrics.ObserveLockWait(lockWait.Seconds())
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveBatch(result.TotalAmount)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"organizer_id":  organizerID,
		"batch_id":      result.ID.String(),
		"reference":     result.Reference,
		"payment_count": result.PaymentCount,
	})
	s.logg.Info(logCtx, "payout batch created")
	return result, nil
}

func (s *service) ConfirmBatch(ctx context.Context, batchID uuid.UUID, input ConfirmInput) (result *Batch, err error) {
	defer func() { s.count("confirm_batch", err) }()

	processedBy := strings.TrimSpace(input.Actor.ID)
	switch {
	case batchID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	case input.Status != enums.PayoutBatchCompleted && input.Status != enums.PayoutBatchFailed:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be completed or failed")
	case processedBy == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processedBy is required")
	}

	current, err := s.loadBatch(ctx, s.repo, batchID)
	if err != nil {
		return nil, err
	}

	var settled []models.CommissionPayment
	err = orglock.WithLock(ctx, s.locker, current.OrganizerID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			paymentRepo := s.payments.WithTx(tx)
			repo := s.repo.WithTx(tx)

			batch, err := s.loadBatch(ctx, repo, batchID)
			if err != nil {
				return err
			}
			if batch.Status != enums.PayoutBatchProcessing {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only processing batches can be confirmed").
					WithDetails(map[string]any{"status": batch.Status})
			}

			now := s.now().UTC()
			updates := map[string]any{
				"status":         input.Status,
				"completed_date": now,
			}
			if reason := strings.TrimSpace(input.FailureReason); reason != "" && input.Status == enums.PayoutBatchFailed {
				updates["failure_reason"] = reason
			}
			disbursement := strings.TrimSpace(input.DisbursementReference)
			if disbursement != "" {
				updates["disbursement_reference"] = disbursement
			}
			ok, err := repo.TransitionStatus(ctx, batch.ID, enums.PayoutBatchProcessing, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payout batch")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "batch changed concurrently")
			}

			reference := batch.Reference
			if disbursement != "" {
				reference = disbursement
			}
			members, err := paymentRepo.FindByIDs(ctx, batch.OrganizerID, batch.PaymentIDs())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch payments")
			}
			for _, p := range members {
				if p.Status != enums.CommissionPaymentProcessing || p.BatchID == nil || *p.BatchID != batch.ID {
					continue
				}
				if input.Status == enums.PayoutBatchCompleted {
					if err := s.settle(ctx, tx, paymentRepo, batch, p, reference, input.Actor, now); err != nil {
						return err
					}
					settled = append(settled, p)
					continue
				}
				if err := s.release(ctx, tx, paymentRepo, batch, p, input, now); err != nil {
					return err
				}
			}

			event := enums.EventPayoutBatchComplete
			if input.Status == enums.PayoutBatchFailed {
				event = enums.EventPayoutBatchFailed
			}
			batch.Status = input.Status
			if err := s.emitBatch(ctx, tx, event, batch, input.Actor, now, strings.TrimSpace(input.FailureReason)); err != nil {
				return err
			}

			stored, err := repo.FindByID(ctx, batch.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout batch")
			}
			result, err = s.withMembers(ctx, paymentRepo, stored)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	for _, p := range settled {
		s.metrics.AddPaid(string(result.PaymentMethod.CommissionMethod()), p.NetAmount)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"batch_id":     result.ID.String(),
		"organizer_id": result.OrganizerID,
		"status":       string(result.Status),
		"settled":      len(settled),
	})
	s.logg.Info(logCtx, "payout batch confirmed")
	return result, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, repo payments.Repository, batch *models.PayoutBatch, p models.CommissionPayment, reference string, actor audit.Actor, now time.Time) error {
	method := batch.PaymentMethod.CommissionMethod()
	processedBy := strings.TrimSpace(actor.ID)
	ok, err := repo.TransitionStatus(ctx, p.ID, enums.CommissionPaymentProcessing, map[string]any{
		"status":            enums.CommissionPaymentPaid,
		"payment_method":    method,
		"payment_reference": reference,
		"payment_date":      now,
		"processed_by":      processedBy,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle batch payment")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}
	if _, err := s.audit.Append(ctx, tx, audit.Entry{
		PaymentID:      p.ID,
		Action:         enums.CommissionAuditPaidAutomated,
		Actor:          actor,
		PreviousStatus: audit.StatusPtr(enums.CommissionPaymentProcessing),
		NewStatus:      enums.CommissionPaymentPaid,
		Changes: map[string]any{
			"status":           enums.CommissionPaymentPaid,
			"paymentMethod":    method,
			"paymentReference": reference,
			"paymentDate":      now.Format(time.RFC3339),
			"batchId":          batch.ID.String(),
		},
		Notes: "Paid in payout batch " + batch.Reference,
	}); err != nil {
		return err
	}
	batchID := batch.ID
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionPaid,
		AggregateType: enums.AggregateCommissionPayment,
		AggregateID:   p.ID,
		Actor:         actor.Ref(),
		OccurredAt:    now,
		Data: payloads.CommissionPaidEvent{
			PaymentID:        p.ID,
			OrganizerID:      p.OrganizerID,
			AgentID:          p.AgentID,
			NetAmount:        payments.MoneyString(p.NetAmount),
			PaymentMethod:    method,
			PaymentReference: reference,
			PaidAt:           now,
			BatchID:          &batchID,
		},
	})
}

func (s *service) release(ctx context.Context, tx *gorm.DB, repo payments.Repository, batch *models.PayoutBatch, p models.CommissionPayment, input ConfirmInput, now time.Time) error {
	ok, err := repo.TransitionStatus(ctx, p.ID, enums.CommissionPaymentProcessing, map[string]any{
		"status":   enums.CommissionPaymentPending,
		"batch_id": nil,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release batch payment")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}
	notes := "Payout batch " + batch.Reference + " failed"
	if reason := strings.TrimSpace(input.FailureReason); reason != "" {
		notes += ": " + reason
	}
	_, err = s.audit.Append(ctx, tx, audit.Entry{
		PaymentID:      p.ID,
		Action:         enums.CommissionAuditUpdated,
		Actor:          input.Actor,
		PreviousStatus: audit.StatusPtr(enums.CommissionPaymentProcessing),
		NewStatus:      enums.CommissionPaymentPending,
		Changes: map[string]any{
			"status":  enums.CommissionPaymentPending,
			"batchId": nil,
		},
		Notes: notes,
	})
	return err
}

func (s *service) ListBatches(ctx context.Context, organizerID string) ([]models.PayoutBatch, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	rows, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout batches")
	}
	return rows, nil
}

func (s *service) GetBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	batch, err := s.loadBatch(ctx, s.repo, batchID)
	if err != nil {
		return nil, err
	}
	return s.withMembers(ctx, s.payments, batch)
}

func (s *service) withMembers(ctx context.Context, repo payments.Repository, batch *models.PayoutBatch) (*Batch, error) {
	ids := batch.PaymentIDs()
	found, err := repo.FindByIDs(ctx, batch.OrganizerID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch payments")
	}
	byID := make(map[uuid.UUID]models.CommissionPayment, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	members := make([]models.CommissionPayment, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			members = append(members, p)
		}
	}
	return &Batch{PayoutBatch: batch, Payments: members}, nil
}

func (s *service) emitBatch(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, batch *models.PayoutBatch, actor audit.Actor, at time.Time, reason string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayoutBatch,
		AggregateID:   batch.ID,
		Actor:         actor.Ref(),
		OccurredAt:    at,
		Data: payloads.PayoutBatchEvent{
			BatchID:      batch.ID,
			OrganizerID:  batch.OrganizerID,
			Reference:    batch.Reference,
			Status:       batch.Status,
			TotalAmount:  payments.MoneyString(batch.TotalAmount),
			PaymentCount: batch.PaymentCount,
			PaymentIDs:   batch.PaymentIDs(),
			Reason:       reason,
		},
	})
}

func (s *service) loadBatch(ctx context.Context, repo Repository, id uuid.UUID) (*models.PayoutBatch, error) {
	batch, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout batch")
	}
	return batch, nil
}

func (s *service) count(operation string, err error) {
	s.metrics.IncOperation(operation, metrics.Outcome(err, payments.IsRejection))
}

// ineligible reports the requested ids that are missing, foreign to the
// organizer or no longer pending.
func ineligible(requested []uuid.UUID, eligible map[uuid.UUID]models.CommissionPayment) error {
	offending := make([]uuid.UUID, 0)
	for _, id := range requested {
		if _, ok := eligible[id]; !ok {
			offending = append(offending, id)
		}
	}
	return pkgerrors.New(pkgerrors.CodeIneligible, "some payments are not pending for this organizer").
		WithDetails(map[string]any{"paymentIds": offending})
}
