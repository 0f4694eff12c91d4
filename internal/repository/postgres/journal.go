package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/pkg/database"
)

const (
	appendSaleSQL = `
		INSERT INTO sale_journal (
			sale_id, terminal_id, sale_day, payment_method, status,
			total_amount, total_profit, created_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sale_id) DO NOTHING`

	listByDaySQL = `
		SELECT payload
		FROM sale_journal
		WHERE terminal_id = $1 AND sale_day = $2
		ORDER BY created_at DESC, sale_id ASC`
)

// SaleJournal implements repository.SaleJournal using PostgreSQL.
type SaleJournal struct {
	db database.DBTX
}

// NewSaleJournal creates a PostgreSQL-backed sale journal.
func NewSaleJournal(db database.DBTX) *SaleJournal {
	return &SaleJournal{db: db}
}

// Append records a committed sale under its local calendar day. The full
// sale is kept as JSONB next to the columns the day queries filter on.
func (j *SaleJournal) Append(ctx context.Context, terminalID string, sale domain.Sale, day string) (err error) {
	ctx, end := database.TraceQuery(ctx, "AppendSale", appendSaleSQL)
	defer func() { end(err) }()

	payload, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}

	_, err = j.db.Exec(ctx, appendSaleSQL,
		sale.ID,
		terminalID,
		day,
		string(sale.PaymentMethod),
		sale.Status,
		sale.TotalAmount,
		sale.TotalProfit,
		sale.CreatedAt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	return nil
}

// ListByDay returns the journaled sales of a day, newest first.
func (j *SaleJournal) ListByDay(ctx context.Context, terminalID, day string) (sales []domain.Sale, err error) {
	ctx, end := database.TraceQuery(ctx, "ListSalesByDay", listByDaySQL)
	defer func() { end(err) }()

	rows, err := j.db.Query(ctx, listByDaySQL, terminalID, day)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	sales = []domain.Sale{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		var s domain.Sale
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}

	return sales, nil
}
