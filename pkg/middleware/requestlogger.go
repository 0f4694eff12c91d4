package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/posledger/pkg/logger"
)

// CashierIDHeader identifies the operator at the till. It is informational
// only: the terminal trusts its local presentation layer.
const CashierIDHeader = "X-Cashier-ID"

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, cashier_id, trace_id, and span_id, and stores it via
// logger.NewContext.
//
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if cashierID := r.Header.Get(CashierIDHeader); cashierID != "" {
				ctx = logger.WithCashierID(ctx, cashierID)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
