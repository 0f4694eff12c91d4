// Package receipt turns committed sales into printable documents and sends
// them to a print surface.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/posledger/internal/domain"
)

// StoreInfo is the store identity printed at the top of every receipt.
type StoreInfo struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Receipt is a sale plus the store identity it was sold under.
type Receipt struct {
	Store StoreInfo   `json:"store"`
	Sale  domain.Sale `json:"sale"`
}

// New builds the receipt for a committed sale.
func New(store StoreInfo, sale domain.Sale) Receipt {
	return Receipt{Store: store, Sale: sale}
}

// LineKind classifies a document line so a print surface can style it.
type LineKind string

// Line kinds in the order they appear on a receipt.
const (
	KindHeader    LineKind = "header"
	KindMeta      LineKind = "meta"
	KindSeparator LineKind = "separator"
	KindItem      LineKind = "item"
	KindTotal     LineKind = "total"
	KindFooter    LineKind = "footer"
)

// Line is one printable row. Label is left aligned, Value right aligned.
// Detail is an optional second row under an item, e.g. "2 x 5.00".
type Line struct {
	Kind   LineKind `json:"kind"`
	Label  string   `json:"label,omitempty"`
	Value  string   `json:"value,omitempty"`
	Detail string   `json:"detail,omitempty"`
}

// Document is an ordered list of printable lines.
type Document struct {
	SaleID string `json:"sale_id"`
	Lines  []Line `json:"lines"`
}

const footerText = "Thank you for your purchase!"

// Renderer formats receipts. Location is used for the sale timestamp and
// Exponent is the number of minor-unit digits of the currency.
type Renderer struct {
	Location *time.Location
	Exponent int32
}

// Money formats an amount of minor units, e.g. 2000 -> "20.00".
func (r Renderer) Money(minor int64) string {
	return decimal.New(minor, -r.Exponent).StringFixed(r.Exponent)
}

// Render lays out a receipt. It has no side effects.
func (r Renderer) Render(rc Receipt) Document {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	sale := rc.Sale
	method := strings.ToUpper(string(sale.PaymentMethod))

	lines := make([]Line, 0, len(sale.Items)+16)
	add := func(kind LineKind, label, value string) {
		lines = append(lines, Line{Kind: kind, Label: label, Value: value})
	}

	add(KindHeader, rc.Store.Name, "")
	if rc.Store.Address != "" {
		add(KindHeader, rc.Store.Address, "")
	}
	if rc.Store.Phone != "" {
		add(KindHeader, rc.Store.Phone, "")
	}
	add(KindSeparator, "", "")

	add(KindMeta, "Sale:", sale.ID)
	add(KindMeta, "Date:", sale.CreatedAt.In(loc).Format("2006-01-02 15:04"))
	add(KindMeta, "Payment:", method)
	if sale.Status == domain.SaleStatusRefunded {
		add(KindMeta, "Status:", "REFUNDED")
	}
	add(KindSeparator, "", "")

	for _, it := range sale.Items {
		lines = append(lines, Line{
			Kind:   KindItem,
			Label:  it.ProductName,
			Value:  r.Money(it.LineTotal),
			Detail: fmt.Sprintf("%d x %s", it.Quantity, r.Money(it.UnitPrice)),
		})
	}
	add(KindSeparator, "", "")

	add(KindTotal, "Subtotal:", r.Money(sale.ItemsSubtotal()))
	add(KindTotal, "Tax:", r.Money(0))
	add(KindTotal, "TOTAL:", r.Money(sale.TotalAmount))
	add(KindTotal, "Paid by:", method)
	add(KindSeparator, "", "")

	add(KindFooter, footerText, "")

	return Document{SaleID: sale.ID, Lines: lines}
}
