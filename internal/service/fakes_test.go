package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/posledger/internal/domain"
	apperrors "github.com/utafrali/posledger/pkg/errors"
	"github.com/utafrali/posledger/pkg/pagination"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// --- Mock catalog ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func productA() *domain.Product {
	return &domain.Product{ID: "prod-a", Name: "Espresso Beans 1kg", CostPrice: 600, SellPrice: 1000, Stock: 3}
}

func productB() *domain.Product {
	return &domain.Product{ID: "prod-b", Name: "Oat Milk", CostPrice: 300, SellPrice: 500, Stock: 10}
}

// --- Sale creator ---

// fakeCreator records every CreateSale call. When block is set the call
// waits for it to be closed; started receives one value per call.
type fakeCreator struct {
	mu      sync.Mutex
	reqs    []domain.SaleRequest
	errs    []error
	started chan struct{}
	block   chan struct{}
	now     time.Time
}

func newFakeCreator() *fakeCreator {
	return &fakeCreator{now: time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)}
}

func (f *fakeCreator) CreateSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &domain.SubmissionError{Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}

	sale := &domain.Sale{
		ID:            fmt.Sprintf("sale-%03d", n),
		TotalAmount:   req.Total(),
		PaymentMethod: req.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     f.now,
	}
	for _, it := range req.Items {
		sale.Items = append(sale.Items, domain.SaleItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.UnitPrice * int64(it.Quantity),
		})
	}
	return sale, nil
}

func (f *fakeCreator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

// --- Paged sales source ---

// pagedSource serves a fixed list of sales the way the backend listing does.
type pagedSource struct {
	mu     sync.Mutex
	sales  []domain.Sale
	pages  []int
	failAt int
	err    error
	noMeta bool
}

func (s *pagedSource) ListSales(_ context.Context, page, pageSize int) (pagination.Page[domain.Sale], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages = append(s.pages, page)
	if s.failAt == page {
		return pagination.Page[domain.Sale]{}, s.err
	}

	total := len(s.sales)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := min(start+pageSize, total)

	p := pagination.Page[domain.Sale]{Items: append([]domain.Sale(nil), s.sales[start:end]...)}
	if !s.noMeta {
		p.Meta = pagination.Meta{CurrentPage: page, TotalPages: totalPages, Total: total}
	}
	return p, nil
}

func (s *pagedSource) requested() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pages...)
}

// datedSource adds a server-side date filter to pagedSource.
type datedSource struct {
	*pagedSource
	loc   *time.Location
	err   error
	calls int
}

func (s *datedSource) ListSalesByDate(_ context.Context, day string) ([]domain.Sale, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return domain.FilterByDay(s.sales, day, s.loc), nil
}

// endlessSource always returns a full page and never reports its end.
type endlessSource struct {
	calls int
}

func (s *endlessSource) ListSales(_ context.Context, page, pageSize int) (pagination.Page[domain.Sale], error) {
	s.calls++
	items := make([]domain.Sale, pageSize)
	for i := range items {
		items[i] = domain.Sale{ID: fmt.Sprintf("p%d-%d", page, i)}
	}
	return pagination.Page[domain.Sale]{Items: items}, nil
}

// makeSales builds n sales one hour apart, starting at start.
func makeSales(n int, start time.Time) []domain.Sale {
	sales := make([]domain.Sale, n)
	for i := range sales {
		sales[i] = domain.Sale{
			ID:            fmt.Sprintf("sale-%04d", i),
			TotalAmount:   int64(100 * (i + 1)),
			TotalProfit:   int64(40 * (i + 1)),
			PaymentMethod: domain.PaymentMethods()[i%3],
			Status:        domain.SaleStatusCompleted,
			CreatedAt:     start.Add(time.Duration(i) * time.Hour),
		}
	}
	return sales
}

// --- Events ---

type recordingEvents struct {
	mu        sync.Mutex
	committed []string
	days      []string
	keys      []string
	reloads   []int
	err       error
}

func (e *recordingEvents) PublishSaleCommitted(_ context.Context, sale domain.Sale, key, day string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.committed = append(e.committed, sale.ID)
	e.keys = append(e.keys, key)
	e.days = append(e.days, day)
	return e.err
}

func (e *recordingEvents) PublishLedgerReloaded(_ context.Context, ledger *domain.Ledger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloads = append(e.reloads, ledger.Len())
	return e.err
}

// --- Journal ---

type fakeJournal struct {
	mu       sync.Mutex
	appended []string
	days     []string
	listed   []domain.Sale
	err      error
}

func (j *fakeJournal) Append(_ context.Context, _ string, sale domain.Sale, day string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.appended = append(j.appended, sale.ID)
	j.days = append(j.days, day)
	return nil
}

func (j *fakeJournal) ListByDay(context.Context, string, string) ([]domain.Sale, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	return j.listed, nil
}

// --- Ledger cache ---

type memoryCache struct {
	mu      sync.Mutex
	ledger  *domain.Ledger
	saves   int
	loadErr error
}

func (c *memoryCache) Save(_ context.Context, ledger *domain.Ledger) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger = ledger
	c.saves++
	return nil
}

func (c *memoryCache) Load(context.Context) (*domain.Ledger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if c.ledger == nil {
		return nil, apperrors.NotFound("ledger", "till-01")
	}
	return c.ledger, nil
}
