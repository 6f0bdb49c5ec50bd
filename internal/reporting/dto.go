package reporting

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/pkg/enums"
)

const (
	topEarnerLimit = 10
	trendMonths    = 6
	monthLabel     = "Jan 06"
	csvDate        = "1/2/2006"
)

// Summary aggregates an organizer's payments at one point in time. Totals
// are sums of net amounts.
type Summary struct {
	TotalPending      decimal.Decimal `json:"total_pending"`
	TotalProcessing   decimal.Decimal `json:"total_processing"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalDisputed     decimal.Decimal `json:"total_disputed"`
	TotalOverall      decimal.Decimal `json:"total_overall"`
	PendingCount      int             `json:"pending_count"`
	ProcessingCount   int             `json:"processing_count"`
	PaidCount         int             `json:"paid_count"`
	DisputedCount     int             `json:"disputed_count"`
	TotalCount        int             `json:"total_count"`
	AverageCommission decimal.Decimal `json:"average_commission"`
	TopEarners        []Earner        `json:"top_earners"`
	MonthlyTrends     []MonthTrend    `json:"monthly_trends"`
}

// Earner is one agent's paid total.
type Earner struct {
	AgentID       string          `json:"agent_id"`
	AgentName     string          `json:"agent_name"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	PaymentCount  int             `json:"payment_count"`
}

// MonthTrend is the paid total for one calendar month.
type MonthTrend struct {
	Month        string          `json:"month"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	PaymentCount int             `json:"payment_count"`
}

// Export is a rendered report ready to stream to a caller.
type Export struct {
	Format      enums.ExportFormat
	ContentType string
	FileName    string
	Body        []byte
}
