package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ledgerRules names the invariant behind each commission schema constraint so
// a rejected write reads as a domain failure in the logs.
var ledgerRules = map[string]string{
	"ck_commission_payments_amounts":     "commission and tax amounts are non-negative",
	"ck_commission_payments_net":         "net amount equals commission minus tax",
	"ck_commission_payments_sales":       "sales count is non-negative",
	"ck_commission_payments_period":      "period start is not after period end",
	"ck_commission_payments_paid_fields": "paid payments carry a payment date and processor",
	"ux_audit_payment_sequence":          "audit sequence is unique per payment",
	"ck_commission_disputes_description": "disputes carry a description",
	"ck_commission_disputes_adjusted":    "only resolved disputes carry an adjusted amount",
	"ux_payout_batches_reference":        "batch references are unique",
	"ck_payout_batches_count":            "batches contain at least one payment",
	"ck_payment_configurations_minimum":  "minimum payout is non-negative",
	"ck_payment_configurations_tax_rate": "tax rate is between 0 and 1",
	"ck_payment_configurations_day":      "payment day is between 1 and 28",
	"ck_tax_documents_quarter":           "quarter is between 1 and 4",
}

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
	LedgerRule   string `json:"ledger_rule,omitempty"`
}

// Dump walks err and pulls out the typed code and any Postgres constraint
// details from either driver.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		d.LedgerRule = ledgerRules[d.PGConstraint]
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
		d.LedgerRule = ledgerRules[d.PGConstraint]
		return d
	}

	return d
}
