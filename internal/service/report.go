package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/repository"
)

// DayReport is the summary of one day plus, when the terminal keeps a
// journal, how many sales it journaled that day and which of them the
// summarized history does not contain.
type DayReport struct {
	domain.DaySummary
	Source       DateSource `json:"source"`
	JournalCount *int       `json:"journal_count,omitempty"`
	Unsynced     []string   `json:"unsynced,omitempty"`
}

// ReportService builds end-of-day reports.
type ReportService struct {
	ledger     *LedgerAggregator
	journal    repository.SaleJournal
	terminalID string
	logger     *slog.Logger
}

// NewReportService creates a report service. journal may be nil.
func NewReportService(ledger *LedgerAggregator, journal repository.SaleJournal, terminalID string, logger *slog.Logger) *ReportService {
	return &ReportService{
		ledger:     ledger,
		journal:    journal,
		terminalID: terminalID,
		logger:     logger,
	}
}

// DaySummary summarizes the sales of day. Before any history is known the
// summary is empty with source "unavailable". A journal failure does not
// fail the report; the journal fields are left out.
func (s *ReportService) DaySummary(ctx context.Context, day string) (DayReport, error) {
	res, err := s.ledger.LoadSalesForDate(ctx, day)
	if err != nil {
		return DayReport{}, err
	}

	report := DayReport{
		DaySummary: domain.Summarize(res.Day, res.Sales),
		Source:     res.Source,
	}

	if s.journal != nil {
		journaled, err := s.journal.ListByDay(ctx, s.terminalID, res.Day)
		if err != nil {
			s.logger.WarnContext(ctx, "journal unavailable for day report",
				slog.String("date", res.Day),
				slog.String("error", err.Error()),
			)
		} else {
			n := len(journaled)
			report.JournalCount = &n
			report.Unsynced = unsynced(journaled, res.Sales)
		}
	}

	return report, nil
}

// unsynced returns the ids of journaled sales missing from sales, in journal
// order.
func unsynced(journaled, sales []domain.Sale) []string {
	known := make(map[string]struct{}, len(sales))
	for _, sale := range sales {
		known[sale.ID] = struct{}{}
	}

	var missing []string
	for _, sale := range journaled {
		if _, ok := known[sale.ID]; !ok {
			missing = append(missing, sale.ID)
		}
	}
	return missing
}
