// Package engine wires the commission services over one database, one
// organizer locker and one outbox.
package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/internal/disputes"
	"github.com/angelmondragon/commission-engine/internal/orglock"
	"github.com/angelmondragon/commission-engine/internal/paymentconfig"
	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/payouts"
	"github.com/angelmondragon/commission-engine/internal/reporting"
	"github.com/angelmondragon/commission-engine/internal/taxdocuments"
	"github.com/angelmondragon/commission-engine/pkg/config"
	"github.com/angelmondragon/commission-engine/pkg/db"
	"github.com/angelmondragon/commission-engine/pkg/logger"
	"github.com/angelmondragon/commission-engine/pkg/metrics"
	"github.com/angelmondragon/commission-engine/pkg/outbox"
	"github.com/angelmondragon/commission-engine/pkg/redis"
)

// Params are the shared dependencies every service is built from. Redis is
// only required when the commission config selects the redis lock backend.
type Params struct {
	DB      *db.Client
	Redis   *redis.Client
	Config  config.CommissionConfig
	Metrics *metrics.CommissionMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

// Engine exposes the commission services. Build it with New.
type Engine struct {
	Payments      payments.Service
	Disputes      disputes.Service
	Payouts       payouts.Service
	Reporting     reporting.Service
	Config        paymentconfig.Service
	TaxDocuments  taxdocuments.Service
	Audit         audit.Service
	PaymentRecord payments.Repository
	Locker        orglock.Locker
}

func New(params Params) (*Engine, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "commission-engine", Output: io.Discard})
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	taxRate, err := defaultTaxRate(params.Config.DefaultTaxRate)
	if err != nil {
		return nil, err
	}
	locker, err := newLocker(params, logg)
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(snowflakeNode(params.Config.SnowflakeNode))
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}

	conn := params.DB.DB()
	paymentRepo := payments.NewRepository(conn)
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}
	configSvc, err := paymentconfig.NewService(paymentconfig.NewRepository(conn), params.DB, taxRate)
	if err != nil {
		return nil, fmt.Errorf("payment config service: %w", err)
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repository: paymentRepo,
		Audit:      auditSvc,
		Outbox:     events,
		Tx:         params.DB,
		Locker:     locker,
		TaxRates:   configSvc,
		Metrics:    params.Metrics,
		Logger:     logg,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}
	disputeSvc, err := disputes.NewService(disputes.ServiceParams{
		Repository: disputes.NewRepository(conn),
		Payments:   paymentRepo,
		Audit:      auditSvc,
		Outbox:     events,
		Tx:         params.DB,
		Locker:     locker,
		Metrics:    params.Metrics,
		Logger:     logg,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("disputes service: %w", err)
	}
	payoutSvc, err := payouts.NewService(payouts.ServiceParams{
		Repository: payouts.NewRepository(conn),
		Payments:   paymentRepo,
		Audit:      auditSvc,
		Outbox:     events,
		Tx:         params.DB,
		Locker:     locker,
		Node:       node,
		Metrics:    params.Metrics,
		Logger:     logg,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("payouts service: %w", err)
	}
	reportingSvc, err := reporting.NewService(paymentRepo, params.Config.ExportTimeout, logg, clock)
	if err != nil {
		return nil, fmt.Errorf("reporting service: %w", err)
	}
	taxSvc, err := taxdocuments.NewService(taxdocuments.NewRepository(conn), paymentRepo, params.DB, clock)
	if err != nil {
		return nil, fmt.Errorf("tax documents service: %w", err)
	}

	return &Engine{
		Payments:      paymentSvc,
		Disputes:      disputeSvc,
		Payouts:       payoutSvc,
		Reporting:     reportingSvc,
		Config:        configSvc,
		TaxDocuments:  taxSvc,
		Audit:         auditSvc,
		PaymentRecord: paymentRepo,
		Locker:        locker,
	}, nil
}

func newLocker(params Params, logg *logger.Logger) (orglock.Locker, error) {
	if !params.Config.UsesRedisLock() {
		return orglock.NewLocal(params.Config.LockWait), nil
	}
	if params.Redis == nil {
		return nil, fmt.Errorf("redis lock backend selected but no redis client configured")
	}
	return orglock.NewRedis(params.Redis, params.Config.LockTTL, params.Config.LockWait, logg)
}

func defaultTaxRate(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return paymentconfig.DefaultTaxRate, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("default tax rate %q: %w", raw, err)
	}
	return rate, nil
}

func snowflakeNode(configured int64) int64 {
	if configured <= 0 {
		return 1
	}
	return configured
}
