package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/receipt"
	"github.com/utafrali/posledger/internal/service"
	"github.com/utafrali/posledger/pkg/httputil"
)

// SalesHandler serves the sales history, per-day queries and receipts.
type SalesHandler struct {
	ledger   *service.LedgerAggregator
	reports  *service.ReportService
	receipts *service.ReceiptService
	width    int
	logger   *slog.Logger
}

// NewSalesHandler creates a new sales HTTP handler.
func NewSalesHandler(
	ledger *service.LedgerAggregator,
	reports *service.ReportService,
	receipts *service.ReceiptService,
	width int,
	logger *slog.Logger,
) *SalesHandler {
	return &SalesHandler{
		ledger:   ledger,
		reports:  reports,
		receipts: receipts,
		width:    width,
		logger:   logger,
	}
}

// SalesResponse is the loaded sales history.
type SalesResponse struct {
	Sales    []domain.Sale `json:"sales"`
	Count    int           `json:"count"`
	Pages    int           `json:"pages"`
	LoadedAt time.Time     `json:"loaded_at"`
}

// ReceiptResponse is a rendered receipt and its text layout.
type ReceiptResponse struct {
	Document receipt.Document `json:"document"`
	Text     string           `json:"text"`
}

// ListSales handles GET /api/v1/sales
//
// The current snapshot is served as is; ?refresh=true, or no snapshot yet,
// reloads the full history first.
func (h *SalesHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	var sales []domain.Sale
	ledger := h.ledger.Snapshot()
	if ledger == nil || r.URL.Query().Get("refresh") == "true" {
		loaded, err := h.ledger.LoadAllSales(r.Context())
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		sales = loaded
		ledger = h.ledger.Snapshot()
	} else {
		sales = ledger.Sales
	}

	if sales == nil {
		sales = []domain.Sale{}
	}
	out := SalesResponse{Sales: sales, Count: len(sales)}
	if ledger != nil {
		out.Pages = ledger.Pages
		out.LoadedAt = ledger.LoadedAt
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// SalesByDate handles GET /api/v1/sales/date/{date}
//
// Without any history to filter the answer is an empty list with source
// "unavailable", not an error.
func (h *SalesHandler) SalesByDate(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.LoadSalesForDate(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// DaySummary handles GET /api/v1/sales/date/{date}/summary
func (h *SalesHandler) DaySummary(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.DaySummary(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, report)
}

// Receipt handles GET /api/v1/sales/{saleId}/receipt
func (h *SalesHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	doc, err := h.receipts.Render(r.Context(), chi.URLParam(r, "saleId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ReceiptResponse{Document: doc, Text: doc.Text(h.width)})
}

// PrintReceipt handles POST /api/v1/sales/{saleId}/receipt/print
func (h *SalesHandler) PrintReceipt(w http.ResponseWriter, r *http.Request) {
	doc, err := h.receipts.Print(r.Context(), chi.URLParam(r, "saleId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ReceiptResponse{Document: doc, Text: doc.Text(h.width)})
}
