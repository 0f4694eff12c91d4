package repository

import (
	"context"

	"github.com/utafrali/posledger/internal/domain"
)

// LedgerCache persists the last complete ledger of a terminal so the local
// date fallback can answer right after a restart.
type LedgerCache interface {
	// Save replaces the cached ledger.
	Save(ctx context.Context, ledger *domain.Ledger) error

	// Load returns the cached ledger, or a not-found error when none exists.
	Load(ctx context.Context) (*domain.Ledger, error)
}

// SaleJournal is the terminal's local append-only record of committed sales.
type SaleJournal interface {
	// Append records a sale. Appending a sale id twice is a no-op.
	Append(ctx context.Context, terminalID string, sale domain.Sale, day string) error

	// ListByDay returns the journaled sales of a calendar day, newest first.
	ListByDay(ctx context.Context, terminalID, day string) ([]domain.Sale, error)
}
