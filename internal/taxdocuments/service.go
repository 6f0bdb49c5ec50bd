package taxdocuments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paidPaymentReader interface {
	ListPaidForAgent(ctx context.Context, organizerID, agentID string, from, to time.Time) ([]models.CommissionPayment, error)
}

// GenerateInput selects the agent and tax period a document covers. A nil
// Quarter covers the whole year.
type GenerateInput struct {
	AgentID      string
	DocumentType enums.TaxDocumentType
	Year         int
	Quarter      *int
	GeneratedBy  string
}

// Service produces tax document records from paid commissions.
type Service interface {
	Generate(ctx context.Context, organizerID string, input GenerateInput) (*models.TaxDocument, error)
	List(ctx context.Context, organizerID, agentID string) ([]models.TaxDocument, error)
}

type service struct {
	repo     Repository
	payments paidPaymentReader
	tx       txRunner
	now      func() time.Time
}

func NewService(repo Repository, paid paidPaymentReader, tx txRunner, clock func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tax document repository required")
	}
	if paid == nil {
		return nil, fmt.Errorf("payment reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: repo, payments: paid, tx: tx, now: clock}, nil
}

func (s *service) Generate(ctx context.Context, organizerID string, input GenerateInput) (*models.TaxDocument, error) {
	organizerID = strings.TrimSpace(organizerID)
	agentID := strings.TrimSpace(input.AgentID)
	generatedBy := strings.TrimSpace(input.GeneratedBy)
	switch {
	case organizerID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	case agentID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agentId is required")
	case !input.DocumentType.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid document type")
	case input.Year < 2000 || input.Year > 9999:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "year is out of range")
	case input.Quarter != nil && (*input.Quarter < 1 || *input.Quarter > 4):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quarter must be between 1 and 4")
	case generatedBy == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "generatedBy is required")
	}

	from, to := period(input.Year, input.Quarter)
	paid, err := s.payments.ListPaidForAgent(ctx, organizerID, agentID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid payments")
	}
	if len(paid) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no paid commissions in the requested period")
	}

	totalCommission, totalTax := decimal.Zero, decimal.Zero
	ids := make([]uuid.UUID, 0, len(paid))
	for _, p := range paid {
		totalCommission = totalCommission.Add(p.CommissionAmount)
		totalTax = totalTax.Add(p.TaxAmount)
		ids = append(ids, p.ID)
	}

	doc := &models.TaxDocument{
		ID:               uuid.New(),
		OrganizerID:      organizerID,
		AgentID:          agentID,
		DocumentType:     input.DocumentType,
		Year:             input.Year,
		Quarter:          input.Quarter,
		FilePath:         FilePath(organizerID, agentID, input.Year, input.Quarter, input.DocumentType),
		GeneratedDate:    s.now().UTC(),
		GeneratedBy:      generatedBy,
		TotalCommissions: payments.RoundMoney(totalCommission),
		TotalTax:         payments.RoundMoney(totalTax),
		PaymentCount:     len(paid),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, doc, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store tax document")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *service) List(ctx context.Context, organizerID, agentID string) ([]models.TaxDocument, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	rows, err := s.repo.List(ctx, organizerID, strings.TrimSpace(agentID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tax documents")
	}
	return rows, nil
}

// FilePath is the storage key reserved for a document.
func FilePath(organizerID, agentID string, year int, quarter *int, docType enums.TaxDocumentType) string {
	name := fmt.Sprintf("%d", year)
	if quarter != nil {
		name = fmt.Sprintf("%d-Q%d", year, *quarter)
	}
	return fmt.Sprintf("tax-documents/%s/%s/%s-%s.pdf", organizerID, agentID, name, docType)
}

// period returns the half-open [from, to) range of a year or quarter in UTC.
func period(year int, quarter *int) (time.Time, time.Time) {
	if quarter == nil {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0)
	}
	from := time.Date(year, time.Month((*quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 3, 0)
}
