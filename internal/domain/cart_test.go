package domain

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/posledger/pkg/errors"
)

func productA() Product {
	return Product{ID: "prod-a", Name: "Espresso Beans 1kg", CostPrice: 600, SellPrice: 1000, Stock: 3}
}

func productB() Product {
	return Product{ID: "prod-b", Name: "Oat Milk", CostPrice: 300, SellPrice: 500, Stock: 10}
}

func productC() Product {
	return Product{ID: "prod-c", Name: "Paper Cups", CostPrice: 50, SellPrice: 120, Stock: 100}
}

func TestCart_AddLine_NewAndIncrement(t *testing.T) {
	cart := NewCart("session-1")

	line, err := cart.AddLine(productB(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, int64(500), line.UnitPrice)

	line, err = cart.AddLine(productB(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)
	assert.Len(t, cart.Lines(), 1)
	assert.Equal(t, 2, cart.Version())
}

func TestCart_AddLine_OutOfStock(t *testing.T) {
	cart := NewCart("session-1")
	p := productA()
	p.Stock = 0

	_, err := cart.AddLine(p, 1)

	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "Espresso Beans 1kg")
	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.Version())
}

func TestCart_AddLine_InsufficientStockLeavesLine(t *testing.T) {
	cart := NewCart("session-1")

	_, err := cart.AddLine(productA(), 1)
	require.NoError(t, err)

	_, err = cart.AddLine(productA(), 3)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, "not enough stock for Espresso Beans 1kg: 2 left, 3 requested", err.Error())
	assert.Equal(t, "INSUFFICIENT_STOCK", stockErr.ErrorCode())

	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, 1, cart.Version())
}

func TestCart_AddLine_FirstAddAboveStock(t *testing.T) {
	cart := NewCart("session-1")
	_, err := cart.AddLine(productA(), 4)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, cart.IsEmpty())
}

func TestCart_AddLine_InvalidQuantity(t *testing.T) {
	cart := NewCart("session-1")
	_, err := cart.AddLine(productA(), 0)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCart_AddLine_PriceFrozenSnapshotRefreshed(t *testing.T) {
	cart := NewCart("session-1")
	_, err := cart.AddLine(productB(), 1)
	require.NoError(t, err)

	repriced := productB()
	repriced.SellPrice = 900
	repriced.Stock = 4
	line, err := cart.AddLine(repriced, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(500), line.UnitPrice)
	assert.Equal(t, 4, line.StockSnapshot)
	assert.Equal(t, 2, line.Quantity)

	_, err = cart.SetQuantity(productB().ID, 5)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCart_SetQuantity(t *testing.T) {
	cart := NewCart("session-1")
	_, err := cart.AddLine(productB(), 1)
	require.NoError(t, err)

	line, err := cart.SetQuantity("prod-b", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, line.Quantity)

	_, err = cart.SetQuantity("prod-b", 11)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 7, cart.Lines()[0].Quantity)

	_, err = cart.SetQuantity("prod-b", 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCart_SetQuantity_UnknownLine(t *testing.T) {
	cart := NewCart("session-1")

	_, err := cart.SetQuantity("missing", 2)
	require.ErrorIs(t, err, ErrLineNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = cart.SetQuantity("missing", 0)
	assert.NoError(t, err)
}

func TestCart_RemoveLineIdempotent(t *testing.T) {
	cart := NewCart("session-1")
	_, err := cart.AddLine(productA(), 1)
	require.NoError(t, err)

	cart.RemoveLine("prod-a")
	cart.RemoveLine("prod-a")
	cart.RemoveLine("never-added")

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 2, cart.Version())
}

func TestCart_Totals(t *testing.T) {
	cart := NewCart("session-1")
	_, _ = cart.AddLine(productA(), 2)
	_, _ = cart.AddLine(productB(), 3)

	assert.Equal(t, int64(3500), cart.Subtotal())
	assert.Zero(t, cart.Tax())
	assert.Equal(t, int64(3500), cart.Total())
	assert.Equal(t, 5, cart.ItemCount())

	cart.Clear()
	assert.Zero(t, cart.Subtotal())
	assert.True(t, cart.IsEmpty())
}

func TestCart_LinesReturnsCopy(t *testing.T) {
	cart := NewCart("session-1")
	_, _ = cart.AddLine(productB(), 1)

	lines := cart.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, 1, cart.Lines()[0].Quantity)
}

// Random add/set/remove sequences must never put a line above the stock it
// was last loaded with, and the subtotal must always equal the line sum.
func TestCart_RandomOperationsNeverOversellOrDrift(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))

	catalog := make([]Product, 6)
	for i := range catalog {
		catalog[i] = Product{
			ID:        fmt.Sprintf("prod-%d", i),
			Name:      fmt.Sprintf("Product %d", i),
			SellPrice: int64(r.IntN(5000)),
			Stock:     r.IntN(8),
		}
	}

	for run := 0; run < 200; run++ {
		cart := NewCart("session")
		lastStock := map[string]int{}

		for step := 0; step < 50; step++ {
			p := catalog[r.IntN(len(catalog))]
			switch r.IntN(4) {
			case 0, 1:
				p.Stock = r.IntN(8)
				if _, err := cart.AddLine(p, 1+r.IntN(4)); err == nil {
					lastStock[p.ID] = p.Stock
				}
			case 2:
				_, _ = cart.SetQuantity(p.ID, r.IntN(10)-1)
			case 3:
				cart.RemoveLine(p.ID)
			}

			var want int64
			for _, l := range cart.Lines() {
				require.LessOrEqual(t, l.Quantity, lastStock[l.ProductID], "run %d step %d", run, step)
				require.GreaterOrEqual(t, l.Quantity, 1)
				want += int64(l.Quantity) * l.UnitPrice
			}
			require.Equal(t, want, cart.Subtotal(), "run %d step %d", run, step)
		}
	}
}

func TestCart_ConcurrentAddsRespectStock(t *testing.T) {
	cart := NewCart("session-1")
	p := Product{ID: "prod-c", Name: "Croissant", SellPrice: 250, Stock: 20}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cart.AddLine(p, 1)
		}()
	}
	wg.Wait()

	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 20, lines[0].Quantity)
	assert.Equal(t, int64(5000), cart.Subtotal())
}

func TestCart_Snapshot(t *testing.T) {
	cart := NewCart("session-1")
	_, _ = cart.AddLine(productA(), 1)
	_, _ = cart.AddLine(productB(), 2)

	snap := cart.Snapshot()
	assert.Equal(t, "session-1", snap.SessionID)
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, int64(2000), snap.Subtotal())

	cart.Clear()
	assert.Len(t, snap.Lines, 2)
}

func TestCart_Settle_UnchangedCartIsEmptied(t *testing.T) {
	cart := NewCart("session-1")
	_, _ = cart.AddLine(productA(), 1)
	_, _ = cart.AddLine(productB(), 2)

	cart.Settle(cart.Snapshot())

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 3, cart.Version())
}

func TestCart_Settle_KeepsChangesMadeInFlight(t *testing.T) {
	cart := NewCart("session-1")
	_, _ = cart.AddLine(productA(), 1)
	_, _ = cart.AddLine(productB(), 1)
	committed := cart.Snapshot()

	// The cashier keeps scanning while the sale is in flight.
	_, _ = cart.AddLine(productB(), 2)
	_, _ = cart.AddLine(productC(), 1)

	cart.Settle(committed)

	lines := cart.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "prod-b", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "prod-c", lines[1].ProductID)
}
