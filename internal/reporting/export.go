package reporting

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

var csvHeader = []string{
	"Payment ID", "Agent Name", "Event Title", "Commission Amount", "Tax Amount",
	"Net Amount", "Sales Count", "Status", "Payment Method", "Payment Date",
	"Payment Reference", "Period Start", "Period End", "Notes",
}

var contentTypes = map[enums.ExportFormat]string{
	enums.ExportFormatCSV:   "text/csv",
	enums.ExportFormatExcel: "application/vnd.ms-excel",
	enums.ExportFormatPDF:   "application/pdf",
}

var extensions = map[enums.ExportFormat]string{
	enums.ExportFormatCSV:   "csv",
	enums.ExportFormatExcel: "xls",
	enums.ExportFormatPDF:   "pdf",
}

func (s *service) Export(ctx context.Context, organizerID string, format enums.ExportFormat, filters payments.Filters) (*Export, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	if !format.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "format must be csv, excel or pdf")
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	if s.exportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.exportTimeout)
		defer cancel()
	}

	rows, err := s.payments.List(ctx, organizerID, filters)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments for export")
	}

	var body []byte
	switch format {
	case enums.ExportFormatPDF:
		body, err = renderPDF(ctx, rows, s.now().UTC().Format(csvDate))
	default:
		body, err = renderCSV(ctx, rows)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "export cancelled")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"organizer_id": organizerID,
		"format":       string(format),
		"rows":         len(rows),
	})
	s.logg.Info(logCtx, "commission export rendered")

	return &Export{
		Format:      format,
		ContentType: contentTypes[format],
		FileName:    fmt.Sprintf("commissions-%s-%s.%s", organizerID, s.now().UTC().Format("20060102"), extensions[format]),
		Body:        body,
	}, nil
}

func renderCSV(ctx context.Context, rows []models.CommissionPayment) ([]byte, error) {
	var buf bytes.Buffer
	writeCSVLine(&buf, csvHeader)
	for _, p := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
		writeCSVLine(&buf, csvRecord(p))
	}
	return buf.Bytes(), nil
}

// writeCSVLine quotes every field and doubles embedded quotes.
func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
}

func csvRecord(p models.CommissionPayment) []string {
	paymentDate := ""
	if p.PaymentDate != nil {
		paymentDate = p.PaymentDate.UTC().Format(csvDate)
	}
	return []string{
		p.ID.String(),
		p.AgentName,
		p.EventTitle,
		payments.MoneyString(p.CommissionAmount),
		payments.MoneyString(p.TaxAmount),
		payments.MoneyString(p.NetAmount),
		fmt.Sprintf("%d", p.SalesCount),
		string(p.Status),
		string(p.PaymentMethod),
		paymentDate,
		deref(p.PaymentReference),
		p.PeriodStart.UTC().Format(csvDate),
		p.PeriodEnd.UTC().Format(csvDate),
		deref(p.Notes),
	}
}

func reportLines(ctx context.Context, rows []models.CommissionPayment, generated string) ([]string, error) {
	total := decimal.Zero
	lines := []string{
		"Commission Report",
		"Generated: " + generated,
		"",
	}
	for _, p := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		total = total.Add(p.NetAmount)
		lines = append(lines, fmt.Sprintf("%s  %s  %s  %s  %s",
			p.PeriodEnd.UTC().Format(csvDate), p.AgentName, p.EventTitle, p.Status, payments.MoneyString(p.NetAmount)))
	}
	lines = append(lines, "",
		fmt.Sprintf("Total Payments: %d", len(rows)),
		"Total Amount: $"+payments.MoneyString(total),
	)
	return lines, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
