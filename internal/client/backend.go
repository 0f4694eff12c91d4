// Package client talks to the remote sales backend over HTTP/JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/posledger/internal/domain"
	apperrors "github.com/utafrali/posledger/pkg/errors"
	"github.com/utafrali/posledger/pkg/httpclient"
	"github.com/utafrali/posledger/pkg/pagination"
)

const serviceName = "sales backend"

// ErrDateFilterUnavailable means the backend has no server-side date filter.
var ErrDateFilterUnavailable = errors.New("remote date filter unavailable")

// CircuitOpenFallback replaces the raw breaker error with a structured
// service-unavailable error while the backend circuit is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("sales backend is temporarily unavailable, please retry shortly")
}

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// BackendClient is the terminal's view of the sales backend. Reads and writes
// go through separate doers so a failing listing endpoint cannot open the
// breaker that guards sale creation.
type BackendClient struct {
	reads   HTTPDoer
	writes  HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewBackendClient creates a client for the backend at baseURL.
func NewBackendClient(baseURL string, reads, writes HTTPDoer, logger *slog.Logger) *BackendClient {
	return &BackendClient{
		reads:   reads,
		writes:  writes,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// GetProduct fetches the current state of a product, including its stock.
func (c *BackendClient) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.getJSON(ctx, "/api/v1/products/"+url.PathEscape(id), &p, nil); err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

// ListProducts returns the product catalog.
func (c *BackendClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	if err := c.getJSON(ctx, "/api/v1/products", &products, nil); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// CreateSale asks the backend to record a sale. The request is sent exactly
// once. Outcomes are classified as:
//
//   - 2xx with a sale: committed
//   - 4xx other than 408/429, or a 2xx with success=false: *domain.SaleRejectedError
//   - anything else: *domain.SubmissionError, safe to resend with the same
//     idempotency key
func (c *BackendClient) CreateSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal sale request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sales", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create sale request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.writes.Do(ctx, httpReq)
	if err != nil {
		return nil, &domain.SubmissionError{Err: fmt.Errorf("call %s: %w", serviceName, err)}
	}

	status := resp.StatusCode
	env, raw, err := readEnvelope(resp)

	switch {
	case status >= 200 && status < 300:
		if err != nil {
			// The sale may have been recorded; only a resend can tell.
			return nil, &domain.SubmissionError{Err: err}
		}
		if !env.Success {
			return nil, rejection(status, env, raw)
		}
		var sale domain.Sale
		if err := json.Unmarshal(env.Data, &sale); err != nil || sale.ID == "" {
			return nil, &domain.SubmissionError{Err: fmt.Errorf("decode created sale: %w", errOrEmpty(err))}
		}
		return &sale, nil
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return nil, &domain.SubmissionError{Err: fmt.Errorf("%s returned status %d", serviceName, status)}
	case httpclient.IsClientError(status):
		return nil, rejection(status, env, raw)
	default:
		return nil, &domain.SubmissionError{Err: fmt.Errorf("%s returned status %d", serviceName, status)}
	}
}

// ListSales fetches one 1-based page of the sales listing.
func (c *BackendClient) ListSales(ctx context.Context, page, pageSize int) (pagination.Page[domain.Sale], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))

	var out pagination.Page[domain.Sale]
	if err := c.getJSON(ctx, "/api/v1/sales?"+q.Encode(), &out.Items, &out.Meta); err != nil {
		return pagination.Page[domain.Sale]{}, fmt.Errorf("list sales page %d: %w", page, err)
	}
	return out, nil
}

// ListSalesByDate asks the backend for the sales of one day. It returns
// ErrDateFilterUnavailable when the backend does not offer the filter.
func (c *BackendClient) ListSalesByDate(ctx context.Context, day string) ([]domain.Sale, error) {
	q := url.Values{}
	q.Set("date", day)

	resp, err := c.get(ctx, "/api/v1/sales/by-date?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list sales for %s: %w", day, err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, ErrDateFilterUnavailable
	}

	sales := []domain.Sale{}
	if err := decodeInto(resp, &sales, nil); err != nil {
		return nil, fmt.Errorf("list sales for %s: %w", day, err)
	}
	return sales, nil
}

func (c *BackendClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.reads.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", serviceName, err)
	}
	return resp, nil
}

func (c *BackendClient) getJSON(ctx context.Context, path string, data, meta any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	return decodeInto(resp, data, meta)
}

// decodeInto checks the status and success flag of resp and unmarshals the
// data payload into data and the pagination block into meta.
func decodeInto(resp *http.Response, data, meta any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}

	env, err := httpclient.DecodeEnvelope(resp, serviceName)
	if err != nil {
		return err
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return fmt.Errorf("decode %s data: %w", serviceName, err)
		}
	}
	if meta != nil && len(env.Pagination) > 0 {
		if err := json.Unmarshal(env.Pagination, meta); err != nil {
			return fmt.Errorf("decode %s pagination: %w", serviceName, err)
		}
	}
	return nil
}

// readEnvelope consumes and closes the body. raw is returned even when the
// body is not an envelope.
func readEnvelope(resp *http.Response) (httpclient.Envelope, []byte, error) {
	defer func() { _ = resp.Body.Close() }()

	var env httpclient.Envelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return env, nil, fmt.Errorf("read %s response: %w", serviceName, err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, raw, fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return env, raw, nil
}

func rejection(status int, env httpclient.Envelope, raw []byte) *domain.SaleRejectedError {
	r := &domain.SaleRejectedError{Code: http.StatusText(status)}
	if env.Error != nil {
		if env.Error.Code != "" {
			r.Code = env.Error.Code
		}
		r.Reason = env.Error.Message
	}
	if r.Reason == "" {
		r.Reason = strings.TrimSpace(string(raw))
	}
	if r.Reason == "" || strings.HasPrefix(r.Reason, "{") {
		r.Reason = strings.ToLower(http.StatusText(status))
	}
	return r
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return errors.New("response has no sale id")
}
