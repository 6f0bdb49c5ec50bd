package reporting

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

type paymentReader interface {
	List(ctx context.Context, organizerID string, filters payments.Filters) ([]models.CommissionPayment, error)
}

// Service derives read-only views over an organizer's payments.
type Service interface {
	Summarize(ctx context.Context, organizerID string) (*Summary, error)
	Export(ctx context.Context, organizerID string, format enums.ExportFormat, filters payments.Filters) (*Export, error)
}

type service struct {
	payments      paymentReader
	exportTimeout time.Duration
	logg          *logger.Logger
	now           func() time.Time
}

// NewService builds the reporting service. A zero exportTimeout disables the
// export deadline.
func NewService(reader paymentReader, exportTimeout time.Duration, logg *logger.Logger, clock func() time.Time) (Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("payment reader required")
	}
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "reporting", Output: io.Discard})
	}
	if clock == nil {
		clock = time.Now
	}
	return &service{payments: reader, exportTimeout: exportTimeout, logg: logg, now: clock}, nil
}

func (s *service) Summarize(ctx context.Context, organizerID string) (*Summary, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	rows, err := s.payments.List(ctx, organizerID, payments.Filters{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments for summary")
	}
	return summarize(rows, s.now().UTC()), nil
}

func summarize(rows []models.CommissionPayment, now time.Time) *Summary {
	summary := &Summary{
		TotalPending:      decimal.Zero,
		TotalProcessing:   decimal.Zero,
		TotalPaid:         decimal.Zero,
		TotalDisputed:     decimal.Zero,
		TotalOverall:      decimal.Zero,
		AverageCommission: decimal.Zero,
		TopEarners:        []Earner{},
	}

	earners := map[string]*Earner{}
	trends := newTrendWindow(now)
	for _, p := range rows {
		summary.TotalCount++
		summary.TotalOverall = summary.TotalOverall.Add(p.NetAmount)
		switch p.Status {
		case enums.CommissionPaymentPending:
			summary.PendingCount++
			summary.TotalPending = summary.TotalPending.Add(p.NetAmount)
		case enums.CommissionPaymentProcessing:
			summary.ProcessingCount++
			summary.TotalProcessing = summary.TotalProcessing.Add(p.NetAmount)
		case enums.CommissionPaymentDisputed:
			summary.DisputedCount++
			summary.TotalDisputed = summary.TotalDisputed.Add(p.NetAmount)
		case enums.CommissionPaymentPaid:
			summary.PaidCount++
			summary.TotalPaid = summary.TotalPaid.Add(p.NetAmount)

			e, ok := earners[p.AgentID]
			if !ok {
				e = &Earner{AgentID: p.AgentID, AgentName: p.AgentName, TotalEarnings: decimal.Zero}
				earners[p.AgentID] = e
			}
			e.TotalEarnings = e.TotalEarnings.Add(p.NetAmount)
			e.PaymentCount++

			if p.PaymentDate != nil {
				trends.add(*p.PaymentDate, p.NetAmount)
			}
		}
	}

	if summary.PaidCount > 0 {
		summary.AverageCommission = payments.RoundMoney(summary.TotalPaid.Div(decimal.NewFromInt(int64(summary.PaidCount))))
	}
	summary.TopEarners = rankEarners(earners)
	summary.MonthlyTrends = trends.months
	return summary
}

func rankEarners(earners map[string]*Earner) []Earner {
	ranked := make([]Earner, 0, len(earners))
	for _, e := range earners {
		ranked = append(ranked, *e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if cmp := a.TotalEarnings.Cmp(b.TotalEarnings); cmp != 0 {
			return cmp > 0
		}
		if a.PaymentCount != b.PaymentCount {
			return a.PaymentCount > b.PaymentCount
		}
		return a.AgentID < b.AgentID
	})
	if len(ranked) > topEarnerLimit {
		ranked = ranked[:topEarnerLimit]
	}
	return ranked
}

// trendWindow buckets paid amounts into the trailing calendar months ending
// with the month of now, oldest first.
type trendWindow struct {
	start  time.Time
	months []MonthTrend
}

func newTrendWindow(now time.Time) *trendWindow {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := current.AddDate(0, -(trendMonths - 1), 0)
	months := make([]MonthTrend, trendMonths)
	for i := range months {
		months[i] = MonthTrend{Month: start.AddDate(0, i, 0).Format(monthLabel), TotalPaid: decimal.Zero}
	}
	return &trendWindow{start: start, months: months}
}

func (w *trendWindow) add(at time.Time, amount decimal.Decimal) {
	at = at.UTC()
	idx := (at.Year()-w.start.Year())*12 + int(at.Month()) - int(w.start.Month())
	if idx < 0 || idx >= len(w.months) {
		return
	}
	w.months[idx].TotalPaid = w.months[idx].TotalPaid.Add(amount)
	w.months[idx].PaymentCount++
}
