package controllers

import (
	"net/http"

	"github.com/angelmondragon/commission-engine/api/responses"
	"github.com/angelmondragon/commission-engine/api/validators"
	"github.com/angelmondragon/commission-engine/internal/reporting"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
	"github.com/angelmondragon/commission-engine/pkg/logger"
)

// CommissionSummary aggregates an organizer's payments.
func CommissionSummary(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reporting service unavailable"))
			return
		}

		summary, err := svc.Summarize(r.Context(), organizerParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// ExportCommissions streams the filtered payment list as csv, excel or pdf.
// The format defaults to csv.
func ExportCommissions(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reporting service unavailable"))
			return
		}

		format, err := validators.ParseQueryEnum(r, "format", enums.ParseExportFormat)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if format == nil {
			csv := enums.ExportFormatCSV
			format = &csv
		}

		filters, err := parsePaymentFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		export, err := svc.Export(r.Context(), organizerParam(r), *format, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteFile(w, export.ContentType, export.FileName, export.Body)
	}
}
