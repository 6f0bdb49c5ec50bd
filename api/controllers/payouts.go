package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/commission-engine/api/responses"
	"github.com/angelmondragon/commission-engine/api/validators"
	"github.com/angelmondragon/commission-engine/internal/payouts"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

type createBatchRequest struct {
	actorFields
	PaymentIDs    []uuid.UUID `json:"payment_ids" validate:"required,min=1,max=500"`
	PaymentMethod string      `json:"payment_method" validate:"required,oneof=bank_transfer paypal manual"`
}

// CreatePayoutBatch claims pending payments into a new processing batch.
func CreatePayoutBatch(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		var payload createBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.CreateBatch(r.Context(), organizerParam(r), payload.PaymentIDs, payouts.CreateInput{
			PaymentMethod: enums.PayoutMethod(payload.PaymentMethod),
			Actor:         payload.resolve(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBatchDetail(batch))
	}
}

// ListPayoutBatches returns an organizer's batches, newest first.
func ListPayoutBatches(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		rows, err := svc.ListBatches(r.Context(), organizerParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]batchResponse, 0, len(rows))
		for _, b := range rows {
			out = append(out, newBatchResponse(b, nil))
		}
		responses.WriteSuccess(w, out)
	}
}

func GetPayoutBatch(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "batchId"), "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.GetBatch(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBatchDetail(batch))
	}
}

type confirmBatchRequest struct {
	actorFields
	Status                string `json:"status" validate:"required,oneof=completed failed"`
	FailureReason         string `json:"failure_reason,omitempty" validate:"omitempty,max=2000"`
	DisbursementReference string `json:"disbursement_reference,omitempty" validate:"omitempty,max=256"`
}

// ConfirmPayoutBatch records the disbursement outcome of a processing batch.
func ConfirmPayoutBatch(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "batchId"), "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.ConfirmBatch(r.Context(), id, payouts.ConfirmInput{
			Status:                enums.PayoutBatchStatus(payload.Status),
			FailureReason:         strings.TrimSpace(payload.FailureReason),
			DisbursementReference: strings.TrimSpace(payload.DisbursementReference),
			Actor:                 payload.resolve(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBatchDetail(batch))
	}
}
