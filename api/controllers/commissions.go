package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/api/responses"
	"github.com/angelmondragon/commission-engine/api/validators"
	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

const notesMaxLen = 2000

// ListCommissions returns an organizer's payments matching the query filters.
func ListCommissions(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		filters, err := parsePaymentFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Query(r.Context(), organizerParam(r), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponses(rows))
	}
}

type createCommissionRequest struct {
	actorFields
	AgentID          string           `json:"agent_id" validate:"required,max=128"`
	AgentName        string           `json:"agent_name" validate:"required,max=256"`
	EventID          string           `json:"event_id" validate:"required,max=128"`
	EventTitle       string           `json:"event_title" validate:"required,max=512"`
	CommissionAmount decimal.Decimal  `json:"commission_amount"`
	TaxAmount        *decimal.Decimal `json:"tax_amount,omitempty"`
	SalesCount       int              `json:"sales_count" validate:"min=0"`
	PeriodStart      time.Time        `json:"period_start" validate:"required"`
	PeriodEnd        time.Time        `json:"period_end" validate:"required"`
	PaymentMethod    string           `json:"payment_method,omitempty" validate:"omitempty,oneof=manual automated bank_transfer paypal check"`
	Notes            string           `json:"notes,omitempty"`
}

func (req createCommissionRequest) toInput(r *http.Request) payments.CreateInput {
	return payments.CreateInput{
		AgentID:          strings.TrimSpace(req.AgentID),
		AgentName:        strings.TrimSpace(req.AgentName),
		EventID:          strings.TrimSpace(req.EventID),
		EventTitle:       strings.TrimSpace(req.EventTitle),
		CommissionAmount: req.CommissionAmount,
		TaxAmount:        req.TaxAmount,
		SalesCount:       req.SalesCount,
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		PaymentMethod:    enums.CommissionPaymentMethod(req.PaymentMethod),
		Notes:            validators.SanitizeString(req.Notes, notesMaxLen),
		Actor:            req.resolve(r),
	}
}

// CreateCommission records a newly accrued commission in pending.
func CreateCommission(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload createCommissionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Create(r.Context(), organizerParam(r), payload.toInput(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(*payment))
	}
}

// GetCommission returns a payment with its audit trail, disputes and tax documents.
func GetCommission(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(*payment))
	}
}

type markPaidRequest struct {
	actorFields
	PaymentMethod string `json:"payment_method" validate:"required,oneof=manual automated bank_transfer paypal check"`
	Reference     string `json:"reference,omitempty" validate:"omitempty,max=256"`
	Notes         string `json:"notes,omitempty"`
}

// MarkCommissionPaid settles a payment outside of a batch.
func MarkCommissionPaid(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload markPaidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.MarkAsPaid(r.Context(), id, payments.MarkPaidInput{
			Method:    enums.CommissionPaymentMethod(payload.PaymentMethod),
			Reference: strings.TrimSpace(payload.Reference),
			Notes:     validators.SanitizeString(payload.Notes, notesMaxLen),
			Actor:     payload.resolve(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(*payment))
	}
}

type cancelRequest struct {
	actorFields
	Reason string `json:"reason,omitempty"`
}

// CancelCommission voids a payment that has not settled.
func CancelCommission(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Cancel(r.Context(), id, payments.CancelInput{
			Reason: validators.SanitizeString(payload.Reason, notesMaxLen),
			Actor:  payload.resolve(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(*payment))
	}
}

func organizerParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "organizerId"))
}

func parsePaymentFilters(r *http.Request) (payments.Filters, error) {
	var filters payments.Filters
	var err error

	if filters.Status, err = validators.ParseQueryEnum(r, "status", enums.ParseCommissionPaymentStatus); err != nil {
		return filters, err
	}
	if filters.PaymentMethod, err = validators.ParseQueryEnum(r, "paymentMethod", enums.ParseCommissionPaymentMethod); err != nil {
		return filters, err
	}
	if filters.From, err = validators.ParseQueryDate(r, "from"); err != nil {
		return filters, err
	}
	if filters.To, err = validators.ParseQueryDate(r, "to"); err != nil {
		return filters, err
	}
	query := r.URL.Query()
	filters.AgentID = strings.TrimSpace(query.Get("agentId"))
	filters.EventID = strings.TrimSpace(query.Get("eventId"))
	return filters, nil
}
