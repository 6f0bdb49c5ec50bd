package taxdocuments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/testutil"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

func quarter(q int) *int { return &q }

func TestFilePath(t *testing.T) {
	assert.Equal(t, "tax-documents/org-1/agent-1/2024-1099.pdf", FilePath("org-1", "agent-1", 2024, nil, enums.TaxDocument1099))
	assert.Equal(t, "tax-documents/org-1/agent-1/2024-Q3-summary.pdf", FilePath("org-1", "agent-1", 2024, quarter(3), enums.TaxDocumentSummary))
}

func TestPeriod(t *testing.T) {
	from, to := period(2024, quarter(4))
	assert.Equal(t, testutil.Day(2024, time.October, 1), from)
	assert.Equal(t, testutil.Day(2025, time.January, 1), to)

	from, to = period(2024, nil)
	assert.Equal(t, testutil.Day(2024, time.January, 1), from)
	assert.Equal(t, testutil.Day(2025, time.January, 1), to)
}

func TestGenerateSumsPaidPaymentsInPeriod(t *testing.T) {
	client, conn := testutil.NewTestClient(t)
	svc, err := NewService(NewRepository(conn), payments.NewRepository(conn), client, func() time.Time { return testutil.FixedNow })
	require.NoError(t, err)

	q1a := testutil.SeedPayment(t, conn, "org-1", testutil.WithPaidDate(testutil.Day(2024, time.January, 20)))
	q1b := testutil.SeedPayment(t, conn, "org-1", testutil.WithAmounts("40.00", "6.00"), testutil.WithPaidDate(testutil.Day(2024, time.March, 31)))
	testutil.SeedPayment(t, conn, "org-1", testutil.WithPaidDate(testutil.Day(2024, time.April, 1)))
	testutil.SeedPayment(t, conn, "org-1")
	testutil.SeedPayment(t, conn, "org-1", testutil.WithAgent("agent-2", "Agent Two"), testutil.WithPaidDate(testutil.Day(2024, time.February, 1)))

	doc, err := svc.Generate(context.Background(), "org-1", GenerateInput{
		AgentID:      "agent-1",
		DocumentType: enums.TaxDocument1099,
		Year:         2024,
		Quarter:      quarter(1),
		GeneratedBy:  "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PaymentCount)
	assert.True(t, doc.TotalCommissions.Equal(testutil.Money("140.00")))
	assert.True(t, doc.TotalTax.Equal(testutil.Money("21.00")))
	assert.Equal(t, "tax-documents/org-1/agent-1/2024-Q1-1099.pdf", doc.FilePath)

	var links []models.TaxDocumentPayment
	require.NoError(t, conn.Where("tax_document_id = ?", doc.ID).Find(&links).Error)
	linked := []any{}
	for _, l := range links {
		linked = append(linked, l.PaymentID)
	}
	assert.ElementsMatch(t, []any{q1a.ID, q1b.ID}, linked)

	listed, err := svc.List(context.Background(), "org-1", "agent-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	none, err := svc.List(context.Background(), "org-1", "agent-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGenerateValidation(t *testing.T) {
	client, conn := testutil.NewTestClient(t)
	svc, err := NewService(NewRepository(conn), payments.NewRepository(conn), client, nil)
	require.NoError(t, err)

	base := GenerateInput{AgentID: "agent-1", DocumentType: enums.TaxDocumentSummary, Year: 2024, GeneratedBy: "admin"}
	cases := map[string]func(*GenerateInput){
		"bad type":     func(in *GenerateInput) { in.DocumentType = "w2" },
		"bad quarter":  func(in *GenerateInput) { in.Quarter = quarter(5) },
		"no agent":     func(in *GenerateInput) { in.AgentID = "" },
		"no generator": func(in *GenerateInput) { in.GeneratedBy = "" },
		"bad year":     func(in *GenerateInput) { in.Year = 24 },
	}
	for name, mutate := range cases {
		input := base
		mutate(&input)
		_, err := svc.Generate(context.Background(), "org-1", input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: got %v", name, err)
	}

	_, err = svc.Generate(context.Background(), "org-1", base)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "no paid payments")
}
