package domain

import (
	"fmt"
	"time"
)

// Sale status constants.
const (
	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
)

// Sale is a committed transaction as recorded by the sales backend. It is
// never modified after it is received.
type Sale struct {
	ID            string        `json:"id"`
	TotalAmount   int64         `json:"total_amount"`
	TotalProfit   int64         `json:"total_profit"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []SaleItem    `json:"items"`
}

// SaleItem is one line of a committed sale.
type SaleItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	UnitCost    int64  `json:"unit_cost"`
	LineTotal   int64  `json:"line_total"`
	LineProfit  int64  `json:"line_profit"`
}

// IsCompleted reports whether the sale counts towards revenue.
func (s Sale) IsCompleted() bool {
	return s.Status == SaleStatusCompleted
}

// ItemsSubtotal sums the line totals of the sale.
func (s Sale) ItemsSubtotal() int64 {
	var sum int64
	for _, it := range s.Items {
		sum += it.LineTotal
	}
	return sum
}

// SaleRequestItem is one line of a sale creation request.
type SaleRequestItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// SaleRequest is what the terminal asks the backend to record. It is built
// from a cart snapshot and never changed afterwards.
type SaleRequest struct {
	Items          []SaleRequestItem `json:"items"`
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	IdempotencyKey string            `json:"-"`
}

// IdempotencyKey identifies one exact cart content within a session.
func IdempotencyKey(sessionID string, version int) string {
	return fmt.Sprintf("%s:%d", sessionID, version)
}

// NewSaleRequest builds a request from a cart snapshot. The same snapshot
// always yields the same request, including its idempotency key.
func NewSaleRequest(snap CartSnapshot, method PaymentMethod) (SaleRequest, error) {
	if !method.Valid() {
		return SaleRequest{}, ErrInvalidPaymentMethod
	}
	if len(snap.Lines) == 0 {
		return SaleRequest{}, ErrEmptyCart
	}

	items := make([]SaleRequestItem, len(snap.Lines))
	for i, l := range snap.Lines {
		items[i] = SaleRequestItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	return SaleRequest{
		Items:          items,
		PaymentMethod:  method,
		IdempotencyKey: IdempotencyKey(snap.SessionID, snap.Version),
	}, nil
}

// Total is the sum of quantity * unit price over the request items.
func (r SaleRequest) Total() int64 {
	var sum int64
	for _, it := range r.Items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}
