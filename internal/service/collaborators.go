package service

import (
	"context"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/pkg/pagination"
)

// ProductCatalog resolves products and their current stock.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// SaleCreator records a sale on the backend. Implementations classify
// failures as *domain.SaleRejectedError or *domain.SubmissionError.
type SaleCreator interface {
	CreateSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error)
}

// SalesSource serves the paginated sales listing.
type SalesSource interface {
	ListSales(ctx context.Context, page, pageSize int) (pagination.Page[domain.Sale], error)
}

// DateFilteredSource is implemented by backends that can filter sales by
// calendar day on the server.
type DateFilteredSource interface {
	ListSalesByDate(ctx context.Context, day string) ([]domain.Sale, error)
}

// EventPublisher publishes terminal events.
type EventPublisher interface {
	PublishSaleCommitted(ctx context.Context, sale domain.Sale, idempotencyKey, day string) error
	PublishLedgerReloaded(ctx context.Context, ledger *domain.Ledger) error
}
