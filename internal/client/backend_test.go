package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/posledger/internal/domain"
	apperrors "github.com/utafrali/posledger/pkg/errors"
	"github.com/utafrali/posledger/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	hc := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxRetries: 0, MaxConnsPerHost: 4})
	return NewBackendClient(srv.URL+"/", hc, hc, slog.New(slog.DiscardHandler))
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func saleRequest() domain.SaleRequest {
	return domain.SaleRequest{
		Items:          []domain.SaleRequestItem{{ProductID: "prod-a", Quantity: 2, UnitPrice: 500}},
		PaymentMethod:  domain.PaymentCash,
		IdempotencyKey: "session-1:3",
	}
}

func TestGetProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/prod-a", r.URL.Path)
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"id":"prod-a","name":"Espresso Beans 1kg","sell_price":1000,"cost_price":600,"stock":3}}`)
	})

	p, err := c.GetProduct(context.Background(), "prod-a")

	require.NoError(t, err)
	assert.Equal(t, "Espresso Beans 1kg", p.Name)
	assert.Equal(t, int64(1000), p.SellPrice)
	assert.Equal(t, 3, p.Stock)
}

func TestGetProduct_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusNotFound, `{"success":false,"error":{"code":"NOT_FOUND","message":"product not found"}}`)
	})

	_, err := c.GetProduct(context.Background(), "missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":[{"id":"a"},{"id":"b"}]}`)
	})

	products, err := c.ListProducts(context.Background())

	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestCreateSale_Committed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sales", r.URL.Path)
		assert.Equal(t, "session-1:3", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cash", body["payment_method"])
		assert.NotContains(t, body, "IdempotencyKey")

		writeEnvelope(w, http.StatusCreated, `{"success":true,"data":{"id":"sale-9","total_amount":1000,"payment_method":"cash","status":"completed","created_at":"2024-03-09T18:00:00Z"}}`)
	})

	sale, err := c.CreateSale(context.Background(), saleRequest())

	require.NoError(t, err)
	assert.Equal(t, "sale-9", sale.ID)
	assert.Equal(t, int64(1000), sale.TotalAmount)
}

func TestCreateSale_Classification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRejected bool
		wantReason   string
	}{
		{name: "business refusal", status: http.StatusConflict, body: `{"success":false,"error":{"code":"STOCK_CHANGED","message":"only 1 left of Milk 1L"}}`, wantRejected: true, wantReason: "only 1 left of Milk 1L"},
		{name: "string error", status: http.StatusUnprocessableEntity, body: `{"success":false,"error":"payment declined"}`, wantRejected: true, wantReason: "payment declined"},
		{name: "plain text refusal", status: http.StatusBadRequest, body: `invalid items`, wantRejected: true, wantReason: "invalid items"},
		{name: "success false on 200", status: http.StatusOK, body: `{"success":false,"error":{"message":"store closed"}}`, wantRejected: true, wantReason: "store closed"},
		{name: "server error", status: http.StatusInternalServerError, body: `boom`},
		{name: "not implemented", status: http.StatusNotImplemented, body: ``},
		{name: "request timeout", status: http.StatusRequestTimeout, body: ``},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``},
		{name: "unreadable success", status: http.StatusCreated, body: `<html>`},
		{name: "success without sale", status: http.StatusCreated, body: `{"success":true,"data":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeEnvelope(w, tt.status, tt.body)
			})

			sale, err := c.CreateSale(context.Background(), saleRequest())

			require.Error(t, err)
			assert.Nil(t, sale)
			if tt.wantRejected {
				var rejected *domain.SaleRejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, tt.wantReason, rejected.Reason)
				assert.ErrorIs(t, err, domain.ErrSaleRejected)
				return
			}
			assert.ErrorIs(t, err, domain.ErrSubmission)
			assert.NotErrorIs(t, err, domain.ErrSaleRejected)
		})
	}
}

func TestCreateSale_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	hc := httpclient.New(httpclient.Config{Timeout: time.Second, MaxRetries: 3, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, MaxConnsPerHost: 4})
	c := NewBackendClient(srv.URL, hc, hc, slog.New(slog.DiscardHandler))

	_, err := c.CreateSale(context.Background(), saleRequest())

	assert.ErrorIs(t, err, domain.ErrSubmission)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateSale_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	hc := httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 1})
	c := NewBackendClient(url, hc, hc, slog.New(slog.DiscardHandler))

	_, err := c.CreateSale(context.Background(), saleRequest())

	var subErr *domain.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "your payment was not recorded, please retry", err.Error())
}

func TestCreateSale_CircuitOpenIsSubmissionError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.DiscardHandler)
	cbCfg := httpclient.DefaultCircuitBreakerConfig("test-backend-writes")
	cbCfg.MinRequests = 1
	cbCfg.FailureRatio = 0.5
	writes := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 1}), cbCfg, logger).
		WithFallback(CircuitOpenFallback)
	c := NewBackendClient(srv.URL, writes, writes, logger)

	_, err := c.CreateSale(context.Background(), saleRequest())
	assert.ErrorIs(t, err, domain.ErrSubmission)

	_, err = c.CreateSale(context.Background(), saleRequest())
	assert.ErrorIs(t, err, domain.ErrSubmission)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListSales(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sales", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":[{"id":"s-1"},{"id":"s-2"}],"pagination":{"currentPage":2,"totalPages":3,"total":250}}`)
	})

	page, err := c.ListSales(context.Background(), 2, 100)

	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Meta.CurrentPage)
	assert.Equal(t, 3, page.Meta.TotalPages)
	assert.Equal(t, 250, page.Meta.Total)
}

func TestListSales_NullDataAndMissingPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":null}`)
	})

	page, err := c.ListSales(context.Background(), 1, 100)

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Meta.TotalPages)
}

func TestListSales_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusServiceUnavailable, `{"success":false,"error":"maintenance"}`)
	})

	_, err := c.ListSales(context.Background(), 3, 100)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Contains(t, err.Error(), "page 3")
}

func TestListSalesByDate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sales/by-date", r.URL.Path)
		assert.Equal(t, "2024-03-09", r.URL.Query().Get("date"))
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":[{"id":"s-1"}]}`)
	})

	sales, err := c.ListSalesByDate(context.Background(), "2024-03-09")

	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "s-1", sales[0].ID)
}

func TestListSalesByDate_Unavailable(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusNotImplemented} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			})

			_, err := c.ListSalesByDate(context.Background(), "2024-03-09")

			assert.ErrorIs(t, err, ErrDateFilterUnavailable)
		})
	}
}

func TestListSalesByDate_Failure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, `{"success":false,"error":{"code":"BAD_DATE","message":"bad date"}}`)
	})

	_, err := c.ListSalesByDate(context.Background(), "2024-03-09")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDateFilterUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCircuitOpenFallback(t *testing.T) {
	resp, err := CircuitOpenFallback(context.Background(), httpclient.ErrCircuitOpen)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}
