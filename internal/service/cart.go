package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/posledger/internal/domain"
	apperrors "github.com/utafrali/posledger/pkg/errors"
)

// MaxQuantityPerLine bounds a single cart line regardless of stock.
const MaxQuantityPerLine = 999

// CartView is the read model of the cart handed to the presentation layer.
type CartView struct {
	SessionID string            `json:"session_id"`
	Version   int               `json:"version"`
	Lines     []domain.CartLine `json:"lines"`
	Subtotal  int64             `json:"subtotal"`
	Tax       int64             `json:"tax"`
	Total     int64             `json:"total"`
	ItemCount int               `json:"item_count"`
}

func viewOf(snap domain.CartSnapshot) CartView {
	v := CartView{
		SessionID: snap.SessionID,
		Version:   snap.Version,
		Lines:     snap.Lines,
		Subtotal:  snap.Subtotal(),
	}
	if v.Lines == nil {
		v.Lines = []domain.CartLine{}
	}
	v.Total = v.Subtotal + v.Tax
	for _, l := range snap.Lines {
		v.ItemCount += l.Quantity
	}
	return v
}

// CartService orchestrates the terminal's cart: it resolves products through
// the catalog and applies mutations to the cart.
type CartService struct {
	cart    *domain.Cart
	catalog ProductCatalog
	logger  *slog.Logger
}

// NewCartService creates a cart service over the terminal's cart.
func NewCartService(cart *domain.Cart, catalog ProductCatalog, logger *slog.Logger) *CartService {
	return &CartService{
		cart:    cart,
		catalog: catalog,
		logger:  logger,
	}
}

// View returns the current cart.
func (s *CartService) View() CartView {
	return viewOf(s.cart.Snapshot())
}

// Products lists the catalog.
func (s *CartService) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// AddProduct looks up productID and adds qty units of it. The product is
// read fresh so the stock check uses the latest known stock.
func (s *CartService) AddProduct(ctx context.Context, productID string, qty int) (CartView, error) {
	if productID == "" {
		return CartView{}, apperrors.InvalidInput("product id is required")
	}
	if qty > MaxQuantityPerLine {
		return CartView{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerLine))
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return CartView{}, fmt.Errorf("look up product %s: %w", productID, err)
	}

	line, err := s.cart.AddLine(*p, qty)
	if err != nil {
		s.logger.InfoContext(ctx, "cart add refused",
			slog.String("product_id", productID),
			slog.Int("quantity", qty),
			slog.String("reason", err.Error()),
		)
		return CartView{}, err
	}

	view := s.View()
	s.logger.InfoContext(ctx, "cart line added",
		slog.String("product_id", productID),
		slog.Int("quantity", line.Quantity),
		slog.Int("cart_version", view.Version),
	)
	return view, nil
}

// SetQuantity sets the quantity of an existing line. A quantity below one
// removes the line.
func (s *CartService) SetQuantity(ctx context.Context, productID string, qty int) (CartView, error) {
	if qty > MaxQuantityPerLine {
		return CartView{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerLine))
	}

	if _, err := s.cart.SetQuantity(productID, qty); err != nil {
		return CartView{}, err
	}

	view := s.View()
	s.logger.InfoContext(ctx, "cart line quantity set",
		slog.String("product_id", productID),
		slog.Int("quantity", qty),
		slog.Int("cart_version", view.Version),
	)
	return view, nil
}

// RemoveLine removes a line; removing a missing line is not an error.
func (s *CartService) RemoveLine(ctx context.Context, productID string) CartView {
	s.cart.RemoveLine(productID)

	view := s.View()
	s.logger.InfoContext(ctx, "cart line removed",
		slog.String("product_id", productID),
		slog.Int("cart_version", view.Version),
	)
	return view
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context) CartView {
	s.cart.Clear()

	view := s.View()
	s.logger.InfoContext(ctx, "cart cleared", slog.Int("cart_version", view.Version))
	return view
}
