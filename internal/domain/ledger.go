package domain

import (
	"cmp"
	"slices"
	"time"
)

// Ledger is an immutable snapshot of the terminal's known sales history,
// newest first. A reload produces a new Ledger; an existing one is never
// modified.
type Ledger struct {
	Sales    []Sale    `json:"sales"`
	LoadedAt time.Time `json:"loaded_at"`
	Pages    int       `json:"pages"`
}

// NewLedger deduplicates sales by id, keeping the first occurrence, and sorts
// them by creation time descending. Ties are ordered by id so the result is
// deterministic.
func NewLedger(sales []Sale, loadedAt time.Time, pages int) *Ledger {
	return &Ledger{
		Sales:    SortSales(DedupSales(sales)),
		LoadedAt: loadedAt,
		Pages:    pages,
	}
}

// DedupSales drops later records whose id was already seen.
func DedupSales(sales []Sale) []Sale {
	seen := make(map[string]struct{}, len(sales))
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SortSales sorts in place by CreatedAt descending, then id ascending.
func SortSales(sales []Sale) []Sale {
	slices.SortStableFunc(sales, func(a, b Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sales
}

// Len returns the number of sales; a nil ledger has none.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Sales)
}

// Find returns the sale with the given id.
func (l *Ledger) Find(id string) (Sale, bool) {
	if l == nil {
		return Sale{}, false
	}
	for _, s := range l.Sales {
		if s.ID == id {
			return s, true
		}
	}
	return Sale{}, false
}

// ForDay returns the sales of a calendar day in loc.
func (l *Ledger) ForDay(day string, loc *time.Location) []Sale {
	if l == nil {
		return []Sale{}
	}
	return FilterByDay(l.Sales, day, loc)
}
