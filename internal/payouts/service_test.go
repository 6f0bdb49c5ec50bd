package payouts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/internal/audit"
	"github.com/angelmondragon/commission-engine/internal/orglock"
	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/testutil"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/outbox"
)

type harness struct {
	db  *gorm.DB
	svc Service
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client, conn := testutil.NewTestClient(t)
	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	require.NoError(t, err)
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Payments:   payments.NewRepository(conn),
		Audit:      auditSvc,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Tx:         client,
		Locker:     orglock.NewLocal(time.Second),
		Node:       node,
		Clock:      func() time.Time { return testutil.FixedNow },
	})
	require.NoError(t, err)
	return harness{db: conn, svc: svc}
}

func admin() CreateInput {
	return CreateInput{PaymentMethod: enums.PayoutMethodBankTransfer, Actor: audit.Actor{ID: "admin", Name: "Admin"}}
}

func lastAudit(t *testing.T, db *gorm.DB, paymentID uuid.UUID) models.CommissionAuditEntry {
	t.Helper()
	var entry models.CommissionAuditEntry
	require.NoError(t, db.Where("payment_id = ?", paymentID).Order("sequence DESC").First(&entry).Error)
	return entry
}

func TestCreateBatchClaimsPendingPayments(t *testing.T) {
	h := newHarness(t)
	a := testutil.SeedPayment(t, h.db, "org-1")
	b := testutil.SeedPayment(t, h.db, "org-1", testutil.WithAmounts("200.00", "30.00"))

	batch, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{a.ID, b.ID}, admin())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(batch.Reference, referencePrefix))
	assert.Equal(t, enums.PayoutBatchProcessing, batch.Status)
	assert.Equal(t, 2, batch.PaymentCount)
	assert.True(t, batch.TotalAmount.Equal(testutil.Money("255.00")), "total %s", batch.TotalAmount)
	assert.True(t, batch.BatchDate.Equal(testutil.FixedNow))
	require.Len(t, batch.Payments, 2)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		p := testutil.ReloadPayment(t, h.db, id)
		assert.Equal(t, enums.CommissionPaymentProcessing, p.Status)
		require.NotNil(t, p.BatchID)
		assert.Equal(t, batch.ID, *p.BatchID)

		entry := lastAudit(t, h.db, id)
		assert.Equal(t, enums.CommissionAuditUpdated, entry.Action)
		assert.Equal(t, "Added to payout batch "+batch.Reference, *entry.Notes)
	}
}

func TestCreateBatchValidation(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	_, err := h.svc.CreateBatch(context.Background(), "org-1", nil, admin())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{id, id}, admin())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{id}, CreateInput{PaymentMethod: "crypto", Actor: audit.Actor{ID: "admin"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{id}, CreateInput{PaymentMethod: enums.PayoutMethodManual})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateBatchIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	pending := testutil.SeedPayment(t, h.db, "org-1")
	paid := testutil.SeedPayment(t, h.db, "org-1", testutil.WithPaidDate(testutil.Day(2024, time.March, 1)))
	foreign := testutil.SeedPayment(t, h.db, "org-2")
	missing := uuid.New()

	_, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{pending.ID, paid.ID, foreign.ID, missing}, admin())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIneligible), "got %v", err)

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []uuid.UUID{paid.ID, foreign.ID, missing}, details["paymentIds"])

	after := testutil.ReloadPayment(t, h.db, pending.ID)
	assert.Equal(t, enums.CommissionPaymentPending, after.Status)
	assert.Nil(t, after.BatchID)

	var batches int64
	require.NoError(t, h.db.Model(&models.PayoutBatch{}).Count(&batches).Error)
	assert.Zero(t, batches)
	var audits int64
	require.NoError(t, h.db.Model(&models.CommissionAuditEntry{}).Count(&audits).Error)
	assert.Zero(t, audits)
}

func TestConfirmBatchCompletedPaysMembers(t *testing.T) {
	h := newHarness(t)
	a := testutil.SeedPayment(t, h.db, "org-1")
	b := testutil.SeedPayment(t, h.db, "org-1")
	batch, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{a.ID, b.ID}, CreateInput{
		PaymentMethod: enums.PayoutMethodPayPal,
		Actor:         audit.Actor{ID: "admin"},
	})
	require.NoError(t, err)

	// b leaves the batch before it settles
	require.NoError(t, h.db.Model(&models.CommissionPayment{}).Where("id = ?", b.ID).
		Update("status", enums.CommissionPaymentDisputed).Error)

	confirmed, err := h.svc.ConfirmBatch(context.Background(), batch.ID, ConfirmInput{
		Status:                enums.PayoutBatchCompleted,
		DisbursementReference: "PAYPAL-998",
		Actor:                 audit.Actor{ID: "payout-callback"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutBatchCompleted, confirmed.Status)
	require.NotNil(t, confirmed.CompletedDate)

	paidA := testutil.ReloadPayment(t, h.db, a.ID)
	assert.Equal(t, enums.CommissionPaymentPaid, paidA.Status)
	assert.Equal(t, enums.CommissionMethodPayPal, paidA.PaymentMethod)
	assert.Equal(t, "PAYPAL-998", *paidA.PaymentReference)
	assert.Equal(t, "payout-callback", *paidA.ProcessedBy)
	assert.Equal(t, enums.CommissionAuditPaidAutomated, lastAudit(t, h.db, a.ID).Action)

	skipped := testutil.ReloadPayment(t, h.db, b.ID)
	assert.Equal(t, enums.CommissionPaymentDisputed, skipped.Status)

	_, err = h.svc.ConfirmBatch(context.Background(), batch.ID, ConfirmInput{Status: enums.PayoutBatchFailed, Actor: audit.Actor{ID: "x"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestConfirmBatchFailedReleasesMembers(t *testing.T) {
	h := newHarness(t)
	a := testutil.SeedPayment(t, h.db, "org-1")
	batch, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{a.ID}, admin())
	require.NoError(t, err)

	failed, err := h.svc.ConfirmBatch(context.Background(), batch.ID, ConfirmInput{
		Status:        enums.PayoutBatchFailed,
		FailureReason: "bank rejected file",
		Actor:         audit.Actor{ID: "payout-callback"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutBatchFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "bank rejected file", *failed.FailureReason)

	released := testutil.ReloadPayment(t, h.db, a.ID)
	assert.Equal(t, enums.CommissionPaymentPending, released.Status)
	assert.Nil(t, released.BatchID)

	again, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{a.ID}, admin())
	require.NoError(t, err, "released payments can be batched again")
	assert.NotEqual(t, batch.Reference, again.Reference)
}

func TestConfirmBatchValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ConfirmBatch(context.Background(), uuid.New(), ConfirmInput{Status: enums.PayoutBatchProcessing, Actor: audit.Actor{ID: "x"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.ConfirmBatch(context.Background(), uuid.New(), ConfirmInput{Status: enums.PayoutBatchCompleted, Actor: audit.Actor{ID: "x"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListAndGetBatches(t *testing.T) {
	h := newHarness(t)
	a := testutil.SeedPayment(t, h.db, "org-1")
	b := testutil.SeedPayment(t, h.db, "org-1")
	first, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{a.ID}, admin())
	require.NoError(t, err)
	second, err := h.svc.CreateBatch(context.Background(), "org-1", []uuid.UUID{b.ID}, admin())
	require.NoError(t, err)

	listed, err := h.svc.ListBatches(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID, "later snowflake reference sorts first on equal dates")
	assert.Equal(t, first.ID, listed[1].ID)

	empty, err := h.svc.ListBatches(context.Background(), "org-2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	got, err := h.svc.GetBatch(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, a.ID, got.Payments[0].ID)

	_, err = h.svc.GetBatch(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
