package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/posledger/internal/domain"
	pkgkafka "github.com/utafrali/posledger/pkg/kafka"
	"github.com/utafrali/posledger/pkg/logger"
)

// Kafka topics for terminal events.
var (
	TopicSaleCommitted  = pkgkafka.Topic("sale", "committed")
	TopicLedgerReloaded = pkgkafka.Topic("ledger", "reloaded")
)

// SaleCommittedData is the payload for a sale.committed event.
type SaleCommittedData struct {
	SaleID         string               `json:"sale_id"`
	TerminalID     string               `json:"terminal_id"`
	IdempotencyKey string               `json:"idempotency_key"`
	TotalAmount    int64                `json:"total_amount"`
	TotalProfit    int64                `json:"total_profit"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	ItemCount      int                  `json:"item_count"`
	SaleDay        string               `json:"sale_day"`
}

// LedgerReloadedData is the payload for a ledger.reloaded event.
type LedgerReloadedData struct {
	TerminalID string `json:"terminal_id"`
	SaleCount  int    `json:"sale_count"`
	Pages      int    `json:"pages"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes terminal events to Kafka.
type Producer struct {
	kafka      publisher
	terminalID string
	logger     *slog.Logger
}

// NewProducer creates an event producer for one terminal. kafka is usually a
// *pkgkafka.Producer.
func NewProducer(kafka publisher, terminalID string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:      kafka,
		terminalID: terminalID,
		logger:     logger,
	}
}

// PublishSaleCommitted publishes a sale.committed event.
func (p *Producer) PublishSaleCommitted(ctx context.Context, sale domain.Sale, idempotencyKey, day string) error {
	items := 0
	for _, it := range sale.Items {
		items += it.Quantity
	}
	data := SaleCommittedData{
		SaleID:         sale.ID,
		TerminalID:     p.terminalID,
		IdempotencyKey: idempotencyKey,
		TotalAmount:    sale.TotalAmount,
		TotalProfit:    sale.TotalProfit,
		PaymentMethod:  sale.PaymentMethod,
		ItemCount:      items,
		SaleDay:        day,
	}

	event, err := pkgkafka.NewEvent(TopicSaleCommitted, sale.ID, p.terminalID, data)
	if err != nil {
		return fmt.Errorf("create sale.committed event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicSaleCommitted, event); err != nil {
		return fmt.Errorf("publish sale.committed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published sale.committed event",
		slog.String("sale_id", sale.ID),
		slog.String("idempotency_key", idempotencyKey),
	)

	return nil
}

// PublishLedgerReloaded publishes a ledger.reloaded event.
func (p *Producer) PublishLedgerReloaded(ctx context.Context, ledger *domain.Ledger) error {
	data := LedgerReloadedData{
		TerminalID: p.terminalID,
		SaleCount:  ledger.Len(),
	}
	if ledger != nil {
		data.Pages = ledger.Pages
	}

	event, err := pkgkafka.NewEvent(TopicLedgerReloaded, p.terminalID, p.terminalID, data)
	if err != nil {
		return fmt.Errorf("create ledger.reloaded event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicLedgerReloaded, event); err != nil {
		return fmt.Errorf("publish ledger.reloaded event: %w", err)
	}

	p.logger.DebugContext(ctx, "published ledger.reloaded event",
		slog.Int("sale_count", data.SaleCount),
	)

	return nil
}

// Noop discards every event. It is used when EVENTS_ENABLED is off.
type Noop struct{}

func (Noop) PublishSaleCommitted(context.Context, domain.Sale, string, string) error { return nil }
func (Noop) PublishLedgerReloaded(context.Context, *domain.Ledger) error             { return nil }
