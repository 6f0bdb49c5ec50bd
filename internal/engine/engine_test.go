package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/internal/disputes"
	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/payouts"
	"github.com/angelmondragon/commission-engine/internal/testutil"
	"github.com/angelmondragon/commission-engine/pkg/config"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

const org = "org-e2e"

var admin = audit.Actor{ID: "admin", Name: "Admin"}

func newEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	client, conn := testutil.NewTestClient(t)
	eng, err := New(Params{
		DB: client,
		Config: config.CommissionConfig{
			LockBackend:   config.LockBackendLocal,
			LockWait:      2 * time.Second,
			ExportTimeout: time.Second,
		},
		Clock: func() time.Time { return testutil.FixedNow },
	})
	require.NoError(t, err)
	return eng, conn
}

func create(t *testing.T, eng *Engine, agent, commission string, tax *string) *models.CommissionPayment {
	t.Helper()
	input := payments.CreateInput{
		AgentID:          agent,
		AgentName:        "Agent " + agent,
		EventID:          "event-1",
		EventTitle:       "Spring Gala",
		CommissionAmount: testutil.Money(commission),
		SalesCount:       3,
		PeriodStart:      testutil.Day(2024, time.February, 1),
		PeriodEnd:        testutil.Day(2024, time.February, 29),
		PaymentMethod:    enums.CommissionMethodManual,
		Actor:            admin,
	}
	if tax != nil {
		amount := testutil.Money(*tax)
		input.TaxAmount = &amount
	}
	payment, err := eng.Payments.Create(context.Background(), org, input)
	require.NoError(t, err)
	return payment
}

func strPtr(v string) *string { return &v }

func TestNewRequiresDatabase(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)
}

func TestNewRejectsRedisBackendWithoutClient(t *testing.T) {
	client, _ := testutil.NewTestClient(t)
	_, err := New(Params{DB: client, Config: config.CommissionConfig{LockBackend: config.LockBackendRedis}})
	require.Error(t, err)
}

func TestNewRejectsBadTaxRate(t *testing.T) {
	client, _ := testutil.NewTestClient(t)
	_, err := New(Params{DB: client, Config: config.CommissionConfig{DefaultTaxRate: "fifteen"}})
	require.Error(t, err)
}

func TestPaymentLifecycleScenarios(t *testing.T) {
	ctx := context.Background()
	eng, conn := newEngine(t)

	p1 := create(t, eng, "agent-1", "100", nil)
	require.True(t, p1.TaxAmount.Equal(testutil.Money("15")))
	require.True(t, p1.NetAmount.Equal(testutil.Money("85")))

	// mark as paid
	paid, err := eng.Payments.MarkAsPaid(ctx, p1.ID, payments.MarkPaidInput{
		Method:    enums.CommissionMethodBankTransfer,
		Reference: "TXN1",
		Actor:     admin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CommissionPaymentPaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)
	detailed, err := eng.Payments.Get(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, detailed.AuditTrail, 2)
	assert.Equal(t, enums.CommissionAuditCreated, detailed.AuditTrail[0].Action)
	assert.Equal(t, enums.CommissionAuditPaidManually, detailed.AuditTrail[1].Action)

	// dispute the paid payment
	dispute, err := eng.Disputes.CreateDispute(ctx, p1.ID, disputes.CreateInput{
		DisputeType: enums.DisputeTypeIncorrectAmount,
		Description: "two sales missing",
		Actor:       audit.Actor{ID: "agent-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, enums.CommissionPaymentDisputed, testutil.ReloadPayment(t, conn, p1.ID).Status)

	// resolve with an adjusted amount
	adjusted := testutil.Money("80")
	result, err := eng.Disputes.ResolveDispute(ctx, p1.ID, dispute.ID, disputes.ResolveInput{
		Status:         enums.DisputeStatusResolved,
		Resolution:     "recounted",
		AdjustedAmount: &adjusted,
		Actor:          admin,
	})
	require.NoError(t, err)
	assert.True(t, result.Payment.CommissionAmount.Equal(testutil.Money("80")))
	assert.True(t, result.Payment.NetAmount.Equal(testutil.Money("65")))
	assert.Equal(t, enums.CommissionPaymentPending, result.Payment.Status)

	// batch two pending payments
	p2 := create(t, eng, "agent-2", "60", strPtr("10"))
	p3 := create(t, eng, "agent-3", "35", strPtr("5"))
	batch, err := eng.Payouts.CreateBatch(ctx, org, []uuid.UUID{p2.ID, p3.ID}, payouts.CreateInput{
		PaymentMethod: enums.PayoutMethodPayPal,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.True(t, batch.TotalAmount.Equal(testutil.Money("80")))
	assert.Equal(t, 2, batch.PaymentCount)
	for _, id := range []uuid.UUID{p2.ID, p3.ID} {
		assert.Equal(t, enums.CommissionPaymentProcessing, testutil.ReloadPayment(t, conn, id).Status)
	}

	// an ineligible member fails the whole batch
	p4 := create(t, eng, "agent-4", "20", nil)
	_, err = eng.Payments.MarkAsPaid(ctx, p4.ID, payments.MarkPaidInput{Method: enums.CommissionMethodCheck, Actor: admin})
	require.NoError(t, err)
	_, err = eng.Payouts.CreateBatch(ctx, org, []uuid.UUID{p2.ID, p4.ID}, payouts.CreateInput{
		PaymentMethod: enums.PayoutMethodPayPal,
		Actor:         admin,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIneligible), "got %v", err)
	assert.Equal(t, enums.CommissionPaymentProcessing, testutil.ReloadPayment(t, conn, p2.ID).Status)
	assert.Equal(t, enums.CommissionPaymentPaid, testutil.ReloadPayment(t, conn, p4.ID).Status)

	// one event per committed mutation; the rejected batch queued nothing
	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&events).Error)
	assert.Equal(t, int64(9), events)
}

func TestAlreadyPaidLeavesFieldsUnchanged(t *testing.T) {
	ctx := context.Background()
	eng, conn := newEngine(t)
	p := create(t, eng, "agent-1", "100", nil)

	_, err := eng.Payments.MarkAsPaid(ctx, p.ID, payments.MarkPaidInput{Method: enums.CommissionMethodPayPal, Reference: "A", Actor: admin})
	require.NoError(t, err)
	before := testutil.ReloadPayment(t, conn, p.ID)

	_, err = eng.Payments.MarkAsPaid(ctx, p.ID, payments.MarkPaidInput{Method: enums.CommissionMethodCheck, Reference: "B", Actor: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid), "got %v", err)

	after := testutil.ReloadPayment(t, conn, p.ID)
	assert.Equal(t, before.PaymentMethod, after.PaymentMethod)
	assert.Equal(t, *before.PaymentReference, *after.PaymentReference)
	trail, err := eng.Audit.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestConcurrentBatchesNeverDoubleClaim(t *testing.T) {
	ctx := context.Background()
	eng, conn := newEngine(t)
	ids := []uuid.UUID{
		create(t, eng, "agent-1", "40", nil).ID,
		create(t, eng, "agent-2", "60", nil).ID,
	}

	const attempts = 4
	errs := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, errs[i] = eng.Payouts.CreateBatch(ctx, org, ids, payouts.CreateInput{
				PaymentMethod: enums.PayoutMethodBankTransfer,
				Actor:         admin,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIneligible), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var batches int64
	require.NoError(t, conn.Model(&models.PayoutBatch{}).Count(&batches).Error)
	assert.Equal(t, int64(1), batches)
	for _, id := range ids {
		trail, err := eng.Audit.List(ctx, id)
		require.NoError(t, err)
		assert.Len(t, trail, 2, "created plus one batch claim")
	}
}

func TestBatchConfirmationSettlesMembers(t *testing.T) {
	ctx := context.Background()
	eng, conn := newEngine(t)
	p := create(t, eng, "agent-1", "100", nil)
	batch, err := eng.Payouts.CreateBatch(ctx, org, []uuid.UUID{p.ID}, payouts.CreateInput{
		PaymentMethod: enums.PayoutMethodBankTransfer,
		Actor:         admin,
	})
	require.NoError(t, err)

	confirmed, err := eng.Payouts.ConfirmBatch(ctx, batch.ID, payouts.ConfirmInput{
		Status:                enums.PayoutBatchCompleted,
		DisbursementReference: "ACH-77",
		Actor:                 admin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutBatchCompleted, confirmed.Status)

	settled := testutil.ReloadPayment(t, conn, p.ID)
	assert.Equal(t, enums.CommissionPaymentPaid, settled.Status)
	assert.Equal(t, enums.CommissionMethodBankTransfer, settled.PaymentMethod)
	require.NotNil(t, settled.PaymentReference)
	assert.Equal(t, "ACH-77", *settled.PaymentReference)

	summary, err := eng.Reporting.Summarize(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PaidCount)
	assert.True(t, summary.TotalPaid.Equal(testutil.Money("85")))
}
