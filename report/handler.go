package report

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/duka-erp/duka-erp/internal/platform/httpx"
)

// Handler exposes the export endpoints.
type Handler struct {
	client  *Client
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(client *Client, service *Service, logger *slog.Logger) *Handler {
	return &Handler{client: client, service: service, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/sales.csv", h.salesCSV)
	r.Get("/expenditures.csv", h.expendituresCSV)
	r.Get("/sales.pdf", h.salesPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", "err", err)
		httpx.Problem(w, http.StatusServiceUnavailable, "Renderer Unavailable", "the PDF renderer is not reachable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) salesCSV(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}
	rows, err := h.service.SaleRows(r.Context(), from, to)
	if err != nil {
		h.logger.Error("sales export failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
	if err := writeSalesCSV(w, rows, from, to); err != nil {
		h.logger.Error("sales csv write failed", "err", err)
	}
}

func (h *Handler) expendituresCSV(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}
	rows, err := h.service.ExpenditureRows(r.Context(), from, to)
	if err != nil {
		h.logger.Error("expenditure export failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenditures.csv"`)
	if err := writeExpendituresCSV(w, rows, from, to); err != nil {
		h.logger.Error("expenditure csv write failed", "err", err)
	}
}

func (h *Handler) salesPDF(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}
	rows, err := h.service.SaleRows(r.Context(), from, to)
	if err != nil {
		h.logger.Error("sales export failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), salesHTML(rows, from, to))
	if err != nil {
		h.logger.Warn("pdf render failed, renderer unreachable or errored", "err", err)
		httpx.Problem(w, http.StatusServiceUnavailable, "Renderer Unavailable", "PDF export is temporarily unavailable; use the CSV export instead")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="sales.pdf"`)
	_, _ = w.Write(pdf)
}

var salesTemplate = template.Must(template.New("sales").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Sales Report</title>
<style>
body { font-family: sans-serif; font-size: 12px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f0f0f0; }
td.num { text-align: right; }
</style></head><body>
<h1>Sales Report</h1>
<p>{{.Period}} &mdash; generated {{.GeneratedAt}}</p>
<table>
<tr><th>Sale ID</th><th>Date</th><th>Customer</th><th>Amount</th><th>Profit</th><th>Method</th><th>Status</th></tr>
{{range .Rows}}<tr><td>{{.ID}}</td><td>{{.Date.Format "2006-01-02"}}</td><td>{{.Customer}}</td><td class="num">{{printf "%.2f" .Amount}}</td><td class="num">{{printf "%.2f" .Profit}}</td><td>{{.Method}}</td><td>{{.Status}}</td></tr>
{{end}}
<tr><th colspan="3">Totals</th><th class="num">{{printf "%.2f" .TotalAmount}}</th><th class="num">{{printf "%.2f" .TotalProfit}}</th><th colspan="2"></th></tr>
</table>
</body></html>`))

func salesHTML(rows []SaleRow, from, to time.Time) string {
	var totalAmount, totalProfit float64
	for _, row := range rows {
		totalAmount += row.Amount
		totalProfit += row.Profit
	}
	period := "All time"
	if !from.IsZero() || !to.IsZero() {
		period = fmt.Sprintf("%s to %s", dateOrDash(from), dateOrDash(to))
	}
	var b strings.Builder
	_ = salesTemplate.Execute(&b, map[string]any{
		"Rows":        rows,
		"Period":      period,
		"GeneratedAt": time.Now().Format(time.RFC1123),
		"TotalAmount": totalAmount,
		"TotalProfit": totalProfit,
	})
	return b.String()
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}
