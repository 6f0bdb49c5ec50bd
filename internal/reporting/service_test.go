package reporting

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/testutil"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

type stubReader struct {
	listFn func(ctx context.Context, organizerID string, filters payments.Filters) ([]models.CommissionPayment, error)
}

func (s stubReader) List(ctx context.Context, organizerID string, filters payments.Filters) ([]models.CommissionPayment, error) {
	return s.listFn(ctx, organizerID, filters)
}

func rowsReader(rows ...models.CommissionPayment) stubReader {
	return stubReader{listFn: func(context.Context, string, payments.Filters) ([]models.CommissionPayment, error) {
		return rows, nil
	}}
}

func payment(agentID, agentName string, status enums.CommissionPaymentStatus, net string, paidAt *time.Time) models.CommissionPayment {
	p := models.CommissionPayment{
		ID:               uuid.New(),
		AgentID:          agentID,
		AgentName:        agentName,
		EventTitle:       "Spring Gala",
		CommissionAmount: testutil.Money(net),
		TaxAmount:        testutil.Money("0"),
		NetAmount:        testutil.Money(net),
		SalesCount:       2,
		PeriodStart:      testutil.Day(2024, time.January, 1),
		PeriodEnd:        testutil.Day(2024, time.January, 31),
		Status:           status,
		PaymentMethod:    enums.CommissionMethodBankTransfer,
		PaymentDate:      paidAt,
	}
	return p
}

func at(year int, month time.Month, day int) *time.Time {
	t := testutil.Day(year, month, day)
	return &t
}

func newService(t *testing.T, reader paymentReader) Service {
	t.Helper()
	svc, err := NewService(reader, time.Second, nil, func() time.Time { return testutil.FixedNow })
	require.NoError(t, err)
	return svc
}

func TestSummarizeTotalsAndAverages(t *testing.T) {
	svc := newService(t, rowsReader(
		payment("a", "Ann", enums.CommissionPaymentPending, "40.00", nil),
		payment("a", "Ann", enums.CommissionPaymentPaid, "100.00", at(2024, time.March, 1)),
		payment("b", "Bob", enums.CommissionPaymentPaid, "50.00", at(2024, time.February, 10)),
		payment("b", "Bob", enums.CommissionPaymentPaid, "50.00", at(2023, time.June, 10)),
		payment("c", "Cid", enums.CommissionPaymentDisputed, "25.50", nil),
		payment("d", "Dee", enums.CommissionPaymentProcessing, "10.00", nil),
		payment("e", "Eve", enums.CommissionPaymentCancelled, "5.00", nil),
	))

	summary, err := svc.Summarize(context.Background(), "org-1")
	require.NoError(t, err)

	assert.True(t, summary.TotalPending.Equal(testutil.Money("40")))
	assert.True(t, summary.TotalPaid.Equal(testutil.Money("200")))
	assert.True(t, summary.TotalDisputed.Equal(testutil.Money("25.50")))
	assert.True(t, summary.TotalProcessing.Equal(testutil.Money("10")))
	assert.True(t, summary.TotalOverall.Equal(testutil.Money("280.50")))
	assert.Equal(t, 1, summary.PendingCount)
	assert.Equal(t, 3, summary.PaidCount)
	assert.Equal(t, 1, summary.DisputedCount)
	assert.Equal(t, 7, summary.TotalCount)
	assert.True(t, summary.AverageCommission.Equal(testutil.Money("66.67")), "average %s", summary.AverageCommission)

	// Ann and Bob tie at 100; Bob has more payments
	require.Len(t, summary.TopEarners, 2)
	assert.Equal(t, "b", summary.TopEarners[0].AgentID)
	assert.Equal(t, "a", summary.TopEarners[1].AgentID)

	require.Len(t, summary.MonthlyTrends, 6)
	labels := make([]string, 0, 6)
	for _, m := range summary.MonthlyTrends {
		labels = append(labels, m.Month)
	}
	assert.Equal(t, []string{"Oct 23", "Nov 23", "Dec 23", "Jan 24", "Feb 24", "Mar 24"}, labels)
	assert.True(t, summary.MonthlyTrends[4].TotalPaid.Equal(testutil.Money("50")))
	assert.Equal(t, 1, summary.MonthlyTrends[5].PaymentCount)
	assert.True(t, summary.MonthlyTrends[0].TotalPaid.IsZero())
}

func TestSummarizeEmpty(t *testing.T) {
	svc := newService(t, rowsReader())
	summary, err := svc.Summarize(context.Background(), "org-1")
	require.NoError(t, err)
	assert.True(t, summary.AverageCommission.IsZero())
	assert.Empty(t, summary.TopEarners)
	assert.Len(t, summary.MonthlyTrends, 6)
}

func TestTopEarnersCapped(t *testing.T) {
	rows := make([]models.CommissionPayment, 0, 12)
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		rows = append(rows, payment(id, strings.ToUpper(id), enums.CommissionPaymentPaid, "10.00", at(2024, time.March, 1)))
	}
	summary := summarize(rows, testutil.FixedNow)
	require.Len(t, summary.TopEarners, 10)
	assert.Equal(t, "a", summary.TopEarners[0].AgentID, "ties fall back to agent id")
}

func TestExportCSV(t *testing.T) {
	paid := payment("a", `Ann "The Closer"`, enums.CommissionPaymentPaid, "100.5", at(2024, time.March, 5))
	ref := "TXN-1"
	paid.PaymentReference = &ref
	pending := payment("b", "Bob", enums.CommissionPaymentPending, "20", nil)

	var seen payments.Filters
	reader := stubReader{listFn: func(_ context.Context, _ string, filters payments.Filters) ([]models.CommissionPayment, error) {
		seen = filters
		return []models.CommissionPayment{paid, pending}, nil
	}}
	status := enums.CommissionPaymentPaid
	out, err := newService(t, reader).Export(context.Background(), "org-1", enums.ExportFormatCSV, payments.Filters{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, seen.Status)

	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "commissions-org-1-20240315.csv", out.FileName)

	lines := strings.Split(string(out.Body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Payment ID","Agent Name","Event Title","Commission Amount","Tax Amount","Net Amount","Sales Count","Status","Payment Method","Payment Date","Payment Reference","Period Start","Period End","Notes"`, lines[0])
	assert.Equal(t, `"`+paid.ID.String()+`","Ann ""The Closer""","Spring Gala","100.50","0.00","100.50","2","paid","bank_transfer","3/5/2024","TXN-1","1/1/2024","1/31/2024",""`, lines[1])
	assert.Contains(t, lines[2], `"pending","bank_transfer","",""`)
}

func TestExportExcelMatchesCSV(t *testing.T) {
	reader := rowsReader(payment("a", "Ann", enums.CommissionPaymentPending, "10", nil))
	svc := newService(t, reader)
	csv, err := svc.Export(context.Background(), "org-1", enums.ExportFormatCSV, payments.Filters{})
	require.NoError(t, err)
	excel, err := svc.Export(context.Background(), "org-1", enums.ExportFormatExcel, payments.Filters{})
	require.NoError(t, err)
	assert.Equal(t, csv.Body, excel.Body)
	assert.Equal(t, "application/vnd.ms-excel", excel.ContentType)
}

func TestExportPDF(t *testing.T) {
	svc := newService(t, rowsReader(
		payment("a", "Ann (East)", enums.CommissionPaymentPaid, "10.00", at(2024, time.March, 1)),
		payment("b", "Bob", enums.CommissionPaymentPending, "5.25", nil),
	))
	out, err := svc.Export(context.Background(), "org-1", enums.ExportFormatPDF, payments.Filters{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Body, []byte("%PDF-")))
	assert.Contains(t, string(out.Body), "%%EOF")
	assert.Contains(t, string(out.Body), "Total Payments: 2")
	assert.Contains(t, string(out.Body), "Total Amount: $15.25")
	assert.Contains(t, string(out.Body), `Ann \(East\)`)
}

func TestExportPDFEncodesAccentedNames(t *testing.T) {
	svc := newService(t, rowsReader(
		payment("a", "José Núñez", enums.CommissionPaymentPaid, "10.00", at(2024, time.March, 1)),
	))
	out, err := svc.Export(context.Background(), "org-1", enums.ExportFormatPDF, payments.Filters{})
	require.NoError(t, err)

	body := string(out.Body)
	assert.Contains(t, body, "/WinAnsiEncoding")
	assert.Contains(t, body, "Jos\xe9 N\xfa\xf1ez", "name should be written in the font encoding")
	assert.NotContains(t, body, "José", "raw utf-8 must not reach the content stream")
}

func TestExportRejectsInvertedRangeBeforeReading(t *testing.T) {
	svc := newService(t, stubReader{listFn: func(context.Context, string, payments.Filters) ([]models.CommissionPayment, error) {
		t.Fatal("repository should not be read for an invalid range")
		return nil, nil
	}})
	from := testutil.Day(2024, time.March, 31)
	to := testutil.Day(2024, time.March, 1)

	_, err := svc.Export(context.Background(), "org-1", enums.ExportFormatCSV, payments.Filters{From: &from, To: &to})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExportValidationAndCancellation(t *testing.T) {
	svc := newService(t, rowsReader())
	_, err := svc.Export(context.Background(), "org-1", "docx", payments.Filters{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc = newService(t, rowsReader(payment("a", "Ann", enums.CommissionPaymentPending, "1", nil)))
	_, err = svc.Export(ctx, "org-1", enums.ExportFormatCSV, payments.Filters{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	failing := stubReader{listFn: func(context.Context, string, payments.Filters) ([]models.CommissionPayment, error) {
		return nil, errors.New("db down")
	}}
	_, err = newService(t, failing).Summarize(context.Background(), "org-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
