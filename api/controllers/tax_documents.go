package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/commission-engine/api/responses"
	"github.com/angelmondragon/commission-engine/api/validators"
	"github.com/angelmondragon/commission-engine/internal/taxdocuments"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

type generateTaxDocumentRequest struct {
	actorFields
	AgentID      string `json:"agent_id" validate:"required,max=128"`
	DocumentType string `json:"document_type" validate:"required,oneof=1099 summary detailed_statement"`
	Year         int    `json:"year" validate:"required,min=2000,max=2100"`
	Quarter      *int   `json:"quarter,omitempty" validate:"omitempty,min=1,max=4"`
}

// GenerateTaxDocument records a tax document covering an agent's paid commissions.
func GenerateTaxDocument(svc taxdocuments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tax document service unavailable"))
			return
		}

		var payload generateTaxDocumentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doc, err := svc.Generate(r.Context(), organizerParam(r), taxdocuments.GenerateInput{
			AgentID:      strings.TrimSpace(payload.AgentID),
			DocumentType: enums.TaxDocumentType(payload.DocumentType),
			Year:         payload.Year,
			Quarter:      payload.Quarter,
			GeneratedBy:  payload.resolve(r).ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newTaxDocumentResponse(*doc))
	}
}

// ListTaxDocuments returns an organizer's documents, optionally for one agent.
func ListTaxDocuments(svc taxdocuments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tax document service unavailable"))
			return
		}

		rows, err := svc.List(r.Context(), organizerParam(r), strings.TrimSpace(r.URL.Query().Get("agentId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]taxDocumentResponse, 0, len(rows))
		for _, d := range rows {
			out = append(out, newTaxDocumentResponse(d))
		}
		responses.WriteSuccess(w, out)
	}
}
