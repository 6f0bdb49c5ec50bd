package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commission-engine/api/responses"
	"github.com/angelmondragon/commission-engine/api/validators"
	"github.com/angelmondragon/commission-engine/internal/paymentconfig"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

// GetPaymentConfig returns the stored configuration, or the defaults with
// stored=false when the organizer never saved one.
func GetPaymentConfig(svc paymentconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment config service unavailable"))
			return
		}

		organizerID := organizerParam(r)
		cfg, err := svc.Get(r.Context(), organizerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stored := cfg != nil
		if !stored {
			if cfg, err = svc.Effective(r.Context(), organizerID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, newPaymentConfigResponse(*cfg, stored))
	}
}

type paymentConfigUpdateRequest struct {
	PaymentSchedule      *string          `json:"payment_schedule,omitempty" validate:"omitempty,oneof=weekly bi_weekly monthly quarterly"`
	MinimumPayout        *decimal.Decimal `json:"minimum_payout,omitempty"`
	TaxRate              *decimal.Decimal `json:"tax_rate,omitempty"`
	DefaultPaymentMethod *string          `json:"default_payment_method,omitempty" validate:"omitempty,oneof=bank_transfer paypal check"`
	AutoPayEnabled       *bool            `json:"auto_pay_enabled,omitempty"`
	RequireApproval      *bool            `json:"require_approval,omitempty"`
	PaymentDay           *int             `json:"payment_day,omitempty"`
	BankAccountName      *string          `json:"bank_account_name,omitempty" validate:"omitempty,max=256"`
	BankRoutingNumber    *string          `json:"bank_routing_number,omitempty" validate:"omitempty,max=64"`
	BankAccountNumber    *string          `json:"bank_account_number,omitempty" validate:"omitempty,max=64"`
	PayPalClientID       *string          `json:"paypal_client_id,omitempty" validate:"omitempty,max=256"`
	PayPalSandboxMode    *bool            `json:"paypal_sandbox_mode,omitempty"`
}

func (r paymentConfigUpdateRequest) toUpdate() paymentconfig.Update {
	update := paymentconfig.Update{
		MinimumPayout:     r.MinimumPayout,
		TaxRate:           r.TaxRate,
		AutoPayEnabled:    r.AutoPayEnabled,
		RequireApproval:   r.RequireApproval,
		PaymentDay:        r.PaymentDay,
		BankAccountName:   r.BankAccountName,
		BankRoutingNumber: r.BankRoutingNumber,
		BankAccountNumber: r.BankAccountNumber,
		PayPalClientID:    r.PayPalClientID,
		PayPalSandboxMode: r.PayPalSandboxMode,
	}
	if r.PaymentSchedule != nil {
		schedule := enums.PaymentSchedule(*r.PaymentSchedule)
		update.PaymentSchedule = &schedule
	}
	if r.DefaultPaymentMethod != nil {
		method := enums.DefaultPayoutMethod(*r.DefaultPaymentMethod)
		update.DefaultPaymentMethod = &method
	}
	return update
}

// UpdatePaymentConfig applies a partial configuration update.
func UpdatePaymentConfig(svc paymentconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment config service unavailable"))
			return
		}

		var payload paymentConfigUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Update(r.Context(), organizerParam(r), payload.toUpdate())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentConfigResponse(*cfg, true))
	}
}
