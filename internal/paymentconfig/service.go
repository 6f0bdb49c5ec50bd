package paymentconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/commission-engine/pkg/db"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

// Default values applied when an organizer has never saved a configuration.
var (
	DefaultSchedule      = enums.PaymentScheduleMonthly
	DefaultMinimumPayout = decimal.RequireFromString("50.00")
	DefaultTaxRate       = decimal.RequireFromString("0.15")
	DefaultMethod        = enums.DefaultPayoutBankTransfer
	DefaultPaymentDay    = 1
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Update is a partial configuration; nil fields keep their stored value.
type Update struct {
	PaymentSchedule      *enums.PaymentSchedule
	MinimumPayout        *decimal.Decimal
	TaxRate              *decimal.Decimal
	DefaultPaymentMethod *enums.DefaultPayoutMethod
	AutoPayEnabled       *bool
	RequireApproval      *bool
	PaymentDay           *int
	BankAccountName      *string
	BankRoutingNumber    *string
	BankAccountNumber    *string
	PayPalClientID       *string
	PayPalSandboxMode    *bool
}

// Service manages organizer payout policy.
type Service interface {
	Get(ctx context.Context, organizerID string) (*models.PaymentConfiguration, error)
	Update(ctx context.Context, organizerID string, update Update) (*models.PaymentConfiguration, error)
	Effective(ctx context.Context, organizerID string) (*models.PaymentConfiguration, error)
	TaxRate(ctx context.Context, organizerID string) (decimal.Decimal, error)
	ListAutoPay(ctx context.Context) ([]models.PaymentConfiguration, error)
}

type service struct {
	repo           Repository
	tx             txRunner
	defaultTaxRate decimal.Decimal
}

// NewService builds the configuration manager. defaultTaxRate applies to
// organizers without a stored configuration.
func NewService(repo Repository, tx txRunner, defaultTaxRate decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment config repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if defaultTaxRate.IsNegative() || defaultTaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("default tax rate must be within [0,1]")
	}
	return &service{repo: repo, tx: tx, defaultTaxRate: defaultTaxRate}, nil
}

func (s *service) Get(ctx context.Context, organizerID string) (*models.PaymentConfiguration, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	cfg, err := s.repo.Find(ctx, organizerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment configuration")
	}
	return cfg, nil
}

func (s *service) Effective(ctx context.Context, organizerID string) (*models.PaymentConfiguration, error) {
	cfg, err := s.Get(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = s.defaults(strings.TrimSpace(organizerID))
	}
	return cfg, nil
}

func (s *service) TaxRate(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	cfg, err := s.Effective(ctx, organizerID)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.TaxRate, nil
}

func (s *service) ListAutoPay(ctx context.Context) ([]models.PaymentConfiguration, error) {
	rows, err := s.repo.ListAutoPay(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list autopay configurations")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, organizerID string, update Update) (*models.PaymentConfiguration, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	if err := update.validateFields(); err != nil {
		return nil, err
	}

	var result *models.PaymentConfiguration
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Find(ctx, organizerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment configuration")
		}
		create := existing == nil
		if create {
			existing = s.defaults(organizerID)
		}
		update.apply(existing)
		if err := validatePaymentDay(existing.PaymentSchedule, existing.PaymentDay); err != nil {
			return err
		}

		if create {
			err = repo.Create(ctx, existing)
		} else {
			err = repo.Save(ctx, existing)
		}
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment configuration created concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment configuration")
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) defaults(organizerID string) *models.PaymentConfiguration {
	return &models.PaymentConfiguration{
		OrganizerID:          organizerID,
		PaymentSchedule:      DefaultSchedule,
		MinimumPayout:        DefaultMinimumPayout,
		TaxRate:              s.defaultTaxRate,
		DefaultPaymentMethod: DefaultMethod,
		AutoPayEnabled:       false,
		RequireApproval:      true,
		PaymentDay:           DefaultPaymentDay,
	}
}

func (u Update) validateFields() error {
	if u.PaymentSchedule != nil && !u.PaymentSchedule.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment schedule")
	}
	if u.DefaultPaymentMethod != nil && !u.DefaultPaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid default payment method")
	}
	if u.MinimumPayout != nil && u.MinimumPayout.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "minimumPayout must not be negative")
	}
	if u.TaxRate != nil && (u.TaxRate.IsNegative() || u.TaxRate.GreaterThan(decimal.NewFromInt(1))) {
		return pkgerrors.New(pkgerrors.CodeValidation, "taxRate must be between 0 and 1")
	}
	return nil
}

func (u Update) apply(cfg *models.PaymentConfiguration) {
	if u.PaymentSchedule != nil {
		cfg.PaymentSchedule = *u.PaymentSchedule
	}
	if u.MinimumPayout != nil {
		cfg.MinimumPayout = u.MinimumPayout.Round(2)
	}
	if u.TaxRate != nil {
		cfg.TaxRate = u.TaxRate.Round(4)
	}
	if u.DefaultPaymentMethod != nil {
		cfg.DefaultPaymentMethod = *u.DefaultPaymentMethod
	}
	if u.AutoPayEnabled != nil {
		cfg.AutoPayEnabled = *u.AutoPayEnabled
	}
	if u.RequireApproval != nil {
		cfg.RequireApproval = *u.RequireApproval
	}
	if u.PaymentDay != nil {
		cfg.PaymentDay = *u.PaymentDay
	}
	if u.BankAccountName != nil {
		cfg.BankAccountName = u.BankAccountName
	}
	if u.BankRoutingNumber != nil {
		cfg.BankRoutingNumber = u.BankRoutingNumber
	}
	if u.BankAccountNumber != nil {
		cfg.BankAccountNumber = u.BankAccountNumber
	}
	if u.PayPalClientID != nil {
		cfg.PayPalClientID = u.PayPalClientID
	}
	if u.PayPalSandboxMode != nil {
		cfg.PayPalSandboxMode = u.PayPalSandboxMode
	}
}

// validatePaymentDay checks the day against the schedule: a weekday (1..7)
// for weekly cadences, a day of month (1..28) otherwise.
func validatePaymentDay(schedule enums.PaymentSchedule, day int) error {
	limit := 28
	if schedule == enums.PaymentScheduleWeekly || schedule == enums.PaymentScheduleBiWeekly {
		limit = 7
	}
	if day < 1 || day > limit {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("paymentDay must be between 1 and %d for %s schedules", limit, schedule)).
			WithDetails(map[string]any{"paymentDay": day, "schedule": schedule})
	}
	return nil
}
