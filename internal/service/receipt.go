package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/receipt"
	apperrors "github.com/utafrali/posledger/pkg/errors"
)

// ReceiptService renders and prints receipts of committed sales.
type ReceiptService struct {
	recent   *RecentSales
	ledger   *LedgerAggregator
	store    receipt.StoreInfo
	renderer receipt.Renderer
	printer  receipt.Printer
	logger   *slog.Logger
}

// NewReceiptService creates a receipt service. Sales are looked up among the
// recently committed ones first, then in the ledger snapshot.
func NewReceiptService(
	recent *RecentSales,
	ledger *LedgerAggregator,
	store receipt.StoreInfo,
	renderer receipt.Renderer,
	printer receipt.Printer,
	logger *slog.Logger,
) *ReceiptService {
	if printer == nil {
		printer = receipt.NoPrinter{}
	}
	return &ReceiptService{
		recent:   recent,
		ledger:   ledger,
		store:    store,
		renderer: renderer,
		printer:  printer,
		logger:   logger,
	}
}

// FindSale returns a known sale by id.
func (s *ReceiptService) FindSale(id string) (domain.Sale, error) {
	if s.recent != nil {
		if sale, ok := s.recent.Find(id); ok {
			return sale, nil
		}
	}
	if s.ledger != nil {
		if sale, ok := s.ledger.Snapshot().Find(id); ok {
			return sale, nil
		}
	}
	return domain.Sale{}, apperrors.NotFound("sale", id)
}

// Document renders a sale's receipt.
func (s *ReceiptService) Document(sale domain.Sale) receipt.Document {
	return s.renderer.Render(receipt.New(s.store, sale))
}

// Render looks up a sale and renders its receipt.
func (s *ReceiptService) Render(_ context.Context, saleID string) (receipt.Document, error) {
	sale, err := s.FindSale(saleID)
	if err != nil {
		return receipt.Document{}, err
	}
	return s.Document(sale), nil
}

// Print renders a sale's receipt and sends it to the printer. A print
// failure is a *domain.PrintError; the sale itself is unaffected.
func (s *ReceiptService) Print(ctx context.Context, saleID string) (receipt.Document, error) {
	doc, err := s.Render(ctx, saleID)
	if err != nil {
		return receipt.Document{}, err
	}
	if err := s.PrintDocument(ctx, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// PrintDocument sends an already rendered receipt to the printer.
func (s *ReceiptService) PrintDocument(ctx context.Context, doc receipt.Document) error {
	if err := s.printer.Print(ctx, doc); err != nil {
		receiptPrintsTotal.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "receipt print failed",
			slog.String("sale_id", doc.SaleID),
			slog.String("error", err.Error()),
		)
		return err
	}
	receiptPrintsTotal.WithLabelValues("printed").Inc()
	s.logger.InfoContext(ctx, "receipt printed", slog.String("sale_id", doc.SaleID))
	return nil
}
