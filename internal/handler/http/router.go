package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/posledger/internal/service"
	"github.com/utafrali/posledger/pkg/health"
	"github.com/utafrali/posledger/pkg/middleware"
)

// Services groups what the terminal API serves.
type Services struct {
	Cart      *service.CartService
	Submitter *service.SaleSubmitter
	Ledger    *service.LedgerAggregator
	Reports   *service.ReportService
	Receipts  *service.ReceiptService
}

// RouterConfig holds the HTTP settings of the terminal API.
type RouterConfig struct {
	TerminalID     string
	ReceiptWidth   int
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all terminal routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.TerminalID))
	r.Use(middleware.Tracing(cfg.TerminalID))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	cartHandler := NewCartHandler(svcs.Cart, logger)
	checkoutHandler := NewCheckoutHandler(svcs.Submitter, svcs.Receipts, cfg.ReceiptWidth, logger)
	salesHandler := NewSalesHandler(svcs.Ledger, svcs.Reports, svcs.Receipts, cfg.ReceiptWidth, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/products", cartHandler.ListProducts)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/lines", cartHandler.AddLine)
			r.Put("/lines/{productId}", cartHandler.UpdateLine)
			r.Delete("/lines/{productId}", cartHandler.RemoveLine)
		})

		r.Post("/checkout", checkoutHandler.Checkout)
		r.Get("/checkout/state", checkoutHandler.State)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", salesHandler.ListSales)
			r.Get("/date/{date}", salesHandler.SalesByDate)
			r.Get("/date/{date}/summary", salesHandler.DaySummary)
			r.Get("/{saleId}/receipt", salesHandler.Receipt)
			r.Post("/{saleId}/receipt/print", salesHandler.PrintReceipt)
		})
	})

	return r
}
