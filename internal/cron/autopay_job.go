package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/internal/paymentconfig"
	"github.com/angelmondragon/commission-engine/internal/payouts"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

// AutopayActor is recorded as processedBy on batches the job creates.
var AutopayActor = audit.Actor{ID: "system:autopay", Name: "Autopay"}

type autopayConfigs interface {
	ListAutoPay(ctx context.Context) ([]models.PaymentConfiguration, error)
}

type pendingPayments interface {
	ListByStatus(ctx context.Context, organizerID string, status enums.CommissionPaymentStatus) ([]models.CommissionPayment, error)
}

type batchCreator interface {
	CreateBatch(ctx context.Context, organizerID string, paymentIDs []uuid.UUID, input payouts.CreateInput) (*payouts.Batch, error)
}

type AutopayJobParams struct {
	Logger   *logger.Logger
	Configs  autopayConfigs
	Payments pendingPayments
	Payouts  batchCreator
	Clock    func() time.Time
}

func NewAutopayJob(params AutopayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Configs == nil {
		return nil, fmt.Errorf("payment configuration source required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &autopayJob{
		logg:     params.Logger,
		configs:  params.Configs,
		payments: params.Payments,
		payouts:  params.Payouts,
		now:      clock,
	}, nil
}

// autopayJob batches each agent's pending payments for organizers whose
// payout schedule falls on the current day.
type autopayJob struct {
	logg     *logger.Logger
	configs  autopayConfigs
	payments pendingPayments
	payouts  batchCreator
	now      func() time.Time
}

func (j *autopayJob) Name() string { return "commission-autopay" }

func (j *autopayJob) Run(ctx context.Context) error {
	today := j.now().UTC()
	configs, err := j.configs.ListAutoPay(ctx)
	if err != nil {
		return fmt.Errorf("list autopay configurations: %w", err)
	}

	var errs error
	batches := 0
	for _, cfg := range configs {
		if !paymentconfig.IsDue(cfg, today) {
			continue
		}
		created, err := j.runOrganizer(ctx, cfg)
		batches += created
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("organizer %s: %w", cfg.OrganizerID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"organizers": len(configs),
		"batches":    batches,
	})
	j.logg.Info(logCtx, "autopay run complete")
	return errs
}

func (j *autopayJob) runOrganizer(ctx context.Context, cfg models.PaymentConfiguration) (int, error) {
	pending, err := j.payments.ListByStatus(ctx, cfg.OrganizerID, enums.CommissionPaymentPending)
	if err != nil {
		return 0, err
	}

	method := cfg.DefaultPaymentMethod.PayoutMethod()
	created := 0
	var errs error
	for _, group := range groupByAgent(pending) {
		if group.total.LessThan(cfg.MinimumPayout) {
			continue
		}
		batch, err := j.payouts.CreateBatch(ctx, cfg.OrganizerID, group.ids, payouts.CreateInput{
			PaymentMethod: method,
			Actor:         AutopayActor,
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeIneligible) {
				// claimed by a concurrent manual batch; the next cycle picks up what is left
				j.logg.Warn(j.logg.WithField(ctx, "agent_id", group.agentID), "autopay batch skipped: payments no longer pending")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("agent %s: %w", group.agentID, err))
			continue
		}
		created++
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"organizer_id": cfg.OrganizerID,
			"agent_id":     group.agentID,
			"batch_id":     batch.ID.String(),
			"reference":    batch.Reference,
		})
		j.logg.Info(logCtx, "autopay batch created")
	}
	return created, errs
}

type agentGroup struct {
	agentID string
	ids     []uuid.UUID
	total   decimal.Decimal
}

func groupByAgent(rows []models.CommissionPayment) []agentGroup {
	index := map[string]int{}
	var groups []agentGroup
	for _, p := range rows {
		i, ok := index[p.AgentID]
		if !ok {
			i = len(groups)
			index[p.AgentID] = i
			groups = append(groups, agentGroup{agentID: p.AgentID, total: decimal.Zero})
		}
		groups[i].ids = append(groups[i].ids, p.ID)
		groups[i].total = groups[i].total.Add(p.NetAmount)
	}
	return groups
}
