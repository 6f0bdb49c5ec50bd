package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/commission-engine/api/controllers"
	"github.com/angelmondragon/commission-engine/api/middleware"
	"github.com/angelmondragon/commission-engine/internal/disputes"
	"github.com/angelmondragon/commission-engine/internal/engine"
	"github.com/angelmondragon/commission-engine/internal/paymentconfig"
	"github.com/angelmondragon/commission-engine/internal/payments"
	"github.com/angelmondragon/commission-engine/internal/payouts"
	"github.com/angelmondragon/commission-engine/internal/reporting"
	"github.com/angelmondragon/commission-engine/internal/taxdocuments"
	"github.com/angelmondragon/commission-engine/pkg/config"
	"github.com/angelmondragon/commission-engine/pkg/logger"
	pkgredis "github.com/angelmondragon/commission-engine/pkg/redis"
)

// Services are the engine operations exposed over HTTP.
type Services struct {
	Payments     payments.Service
	Disputes     disputes.Service
	Payouts      payouts.Service
	Reporting    reporting.Service
	Config       paymentconfig.Service
	TaxDocuments taxdocuments.Service
}

// ServicesFromEngine picks the HTTP-facing services off a composed engine.
func ServicesFromEngine(e *engine.Engine) Services {
	if e == nil {
		return Services{}
	}
	return Services{
		Payments:     e.Payments,
		Disputes:     e.Disputes,
		Payouts:      e.Payouts,
		Reporting:    e.Reporting,
		Config:       e.Config,
		TaxDocuments: e.TaxDocuments,
	}
}

// Dependencies are the infrastructure handles the router pings or uses
// directly. Nil members disable the corresponding feature.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, logg))

		r.Route("/organizers/{organizerId}", func(r chi.Router) {
			r.Get("/commissions", controllers.ListCommissions(svc.Payments, logg))
			r.Post("/commissions", controllers.CreateCommission(svc.Payments, logg))
			r.Get("/commissions/summary", controllers.CommissionSummary(svc.Reporting, logg))
			r.Get("/commissions/export", controllers.ExportCommissions(svc.Reporting, logg))

			r.Get("/payout-batches", controllers.ListPayoutBatches(svc.Payouts, logg))
			r.Post("/payout-batches", controllers.CreatePayoutBatch(svc.Payouts, logg))

			r.Get("/payment-config", controllers.GetPaymentConfig(svc.Config, logg))
			r.Patch("/payment-config", controllers.UpdatePaymentConfig(svc.Config, logg))

			r.Get("/tax-documents", controllers.ListTaxDocuments(svc.TaxDocuments, logg))
			r.Post("/tax-documents", controllers.GenerateTaxDocument(svc.TaxDocuments, logg))
		})

		r.Route("/commissions/{paymentId}", func(r chi.Router) {
			r.Get("/", controllers.GetCommission(svc.Payments, logg))
			r.Post("/mark-paid", controllers.MarkCommissionPaid(svc.Payments, logg))
			r.Post("/cancel", controllers.CancelCommission(svc.Payments, logg))

			r.Get("/disputes", controllers.ListDisputes(svc.Disputes, logg))
			r.Post("/disputes", controllers.CreateDispute(svc.Disputes, logg))
			r.Post("/disputes/{disputeId}/investigate", controllers.StartInvestigation(svc.Disputes, logg))
			r.Post("/disputes/{disputeId}/resolve", controllers.ResolveDispute(svc.Disputes, logg))
		})

		r.Route("/payout-batches/{batchId}", func(r chi.Router) {
			r.Get("/", controllers.GetPayoutBatch(svc.Payouts, logg))
			r.Post("/confirm", controllers.ConfirmPayoutBatch(svc.Payouts, logg))
		})
	})

	return r
}

func readinessDeps(deps Dependencies) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["db"] = deps.DB
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis
	}
	return out
}
