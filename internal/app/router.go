package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/duka-erp/duka-erp/internal/catalog"
	"github.com/duka-erp/duka-erp/internal/customers"
	"github.com/duka-erp/duka-erp/internal/debts"
	"github.com/duka-erp/duka-erp/internal/expenses"
	"github.com/duka-erp/duka-erp/internal/notify"
	"github.com/duka-erp/duka-erp/internal/observability"
	"github.com/duka-erp/duka-erp/internal/sales"
	"github.com/duka-erp/duka-erp/jobs"
	"github.com/duka-erp/duka-erp/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogHandler   *catalog.Handler
	CustomersHandler *customers.Handler
	SalesHandler     *sales.Handler
	DebtsHandler     *debts.Handler
	ExpensesHandler  *expenses.Handler
	NotifyHandler    *notify.Handler
	ReportHandler    *report.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Duka defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/catalog", params.CatalogHandler.MountRoutes)
	r.Route("/customers", params.CustomersHandler.MountRoutes)
	r.Route("/sales", params.SalesHandler.MountRoutes)
	r.Route("/debts", params.DebtsHandler.MountRoutes)
	r.Route("/expenses", params.ExpensesHandler.MountRoutes)
	if params.NotifyHandler != nil {
		r.Route("/notify", params.NotifyHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
