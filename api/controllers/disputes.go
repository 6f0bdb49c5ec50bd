package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/api/responses"
	"github.com/angelmondragon/commission-engine/api/validators"
	"github.com/angelmondragon/commission-engine/internal/disputes"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

type createDisputeRequest struct {
	actorFields
	DisputeType         string   `json:"dispute_type" validate:"required,oneof=incorrect_amount missing_sales duplicate_payment other"`
	Description         string   `json:"description" validate:"required"`
	SupportingDocuments []string `json:"supporting_documents,omitempty" validate:"omitempty,max=20,dive,required,max=1024"`
}

// CreateDispute opens a dispute and moves the payment to disputed.
func CreateDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createDisputeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.CreateDispute(r.Context(), paymentID, disputes.CreateInput{
			DisputeType:         enums.DisputeType(payload.DisputeType),
			Description:         validators.SanitizeString(payload.Description, notesMaxLen),
			SupportingDocuments: payload.SupportingDocuments,
			Actor:               payload.resolve(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newDisputeResponse(*dispute))
	}
}

// ListDisputes returns every dispute raised against a payment.
func ListDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]disputeResponse, 0, len(rows))
		for _, d := range rows {
			out = append(out, newDisputeResponse(d))
		}
		responses.WriteSuccess(w, out)
	}
}

// StartInvestigation moves an open dispute to investigating.
func StartInvestigation(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		paymentID, disputeID, err := disputePathIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload actorFields
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		dispute, err := svc.StartInvestigation(r.Context(), paymentID, disputeID, payload.resolve(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDisputeResponse(*dispute))
	}
}

type resolveDisputeRequest struct {
	actorFields
	Status         string           `json:"status" validate:"required,oneof=resolved rejected"`
	Resolution     string           `json:"resolution" validate:"required"`
	AdjustedAmount *decimal.Decimal `json:"adjusted_amount,omitempty"`
}

type resolveDisputeResponse struct {
	Dispute disputeResponse `json:"dispute"`
	Payment paymentResponse `json:"payment"`
}

// ResolveDispute closes a dispute and restores or adjusts the payment.
func ResolveDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		paymentID, disputeID, err := disputePathIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ResolveDispute(r.Context(), paymentID, disputeID, disputes.ResolveInput{
			Status:         enums.DisputeStatus(payload.Status),
			Resolution:     validators.SanitizeString(payload.Resolution, notesMaxLen),
			AdjustedAmount: payload.AdjustedAmount,
			Actor:          payload.resolve(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolveDisputeResponse{
			Dispute: newDisputeResponse(*result.Dispute),
			Payment: newPaymentResponse(*result.Payment),
		})
	}
}

func disputePathIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return paymentID, disputeID, nil
}
