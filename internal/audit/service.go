package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/commission-engine/pkg/db"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/outbox"
)

const sequenceConstraint = "ux_audit_payment_sequence"

// Actor identifies who performed a mutation. The engine never authenticates it.
type Actor struct {
	ID        string
	Name      string
	IPAddress string
}

// DisplayName falls back to the id when no name was supplied.
func (a Actor) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return strings.TrimSpace(a.ID)
}

// Ref converts the actor into the outbox envelope form.
func (a Actor) Ref() *outbox.ActorRef {
	return &outbox.ActorRef{ID: strings.TrimSpace(a.ID), Name: a.DisplayName()}
}

// Entry is one transition to be appended to a payment's trail.
type Entry struct {
	PaymentID      uuid.UUID
	Action         enums.CommissionAuditAction
	Actor          Actor
	PreviousStatus *enums.CommissionPaymentStatus
	NewStatus      enums.CommissionPaymentStatus
	Changes        map[string]any
	Notes          string
}

// Service records the append-only audit trail of commission payments.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, entry Entry) (*models.CommissionAuditEntry, error)
	List(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionAuditEntry, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Append writes the entry inside tx so it commits or rolls back with the
// mutation it describes.
func (s *service) Append(ctx context.Context, tx *gorm.DB, entry Entry) (*models.CommissionAuditEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if entry.PaymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	if !entry.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", entry.Action)
	}
	if !entry.NewStatus.IsValid() {
		return nil, fmt.Errorf("invalid new status %q", entry.NewStatus)
	}
	if entry.PreviousStatus != nil && !entry.PreviousStatus.IsValid() {
		return nil, fmt.Errorf("invalid previous status %q", *entry.PreviousStatus)
	}
	if strings.TrimSpace(entry.Actor.ID) == "" {
		return nil, fmt.Errorf("actor id is required")
	}

	repo := s.repo.WithTx(tx)
	seq, err := repo.NextSequence(ctx, entry.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read audit sequence")
	}

	changes := datatypes.JSONMap{}
	for k, v := range entry.Changes {
		changes[k] = v
	}

	row := &models.CommissionAuditEntry{
		PaymentID:      entry.PaymentID,
		Sequence:       seq,
		OccurredAt:     s.now().UTC(),
		Action:         entry.Action,
		UserID:         strings.TrimSpace(entry.Actor.ID),
		UserName:       entry.Actor.DisplayName(),
		PreviousStatus: entry.PreviousStatus,
		NewStatus:      entry.NewStatus,
		Changes:        changes,
		Notes:          optional(entry.Notes),
		IPAddress:      optional(entry.Actor.IPAddress),
	}
	if err := repo.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, sequenceConstraint) || dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent audit append detected")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append audit entry")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionAuditEntry, error) {
	if paymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	entries, err := s.repo.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return entries, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// StatusPtr is a small helper for filling Entry.PreviousStatus.
func StatusPtr(status enums.CommissionPaymentStatus) *enums.CommissionPaymentStatus {
	return &status
}
