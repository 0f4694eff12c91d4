package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/receipt"
	"github.com/utafrali/posledger/internal/repository"
	"github.com/utafrali/posledger/pkg/tracing"
)

const tracerName = "github.com/utafrali/posledger/internal/service"

// SubmitState is the state of the terminal's sale submission.
type SubmitState string

// Submission states. A new Commit is accepted from any state but
// StateSubmitting.
const (
	StateIdle       SubmitState = "idle"
	StateSubmitting SubmitState = "submitting"
	StateCommitted  SubmitState = "committed"
	StateFailed     SubmitState = "failed"
)

// CommitResult is a committed sale and its receipt.
type CommitResult struct {
	Sale    domain.Sale     `json:"sale"`
	Receipt receipt.Receipt `json:"receipt"`
}

// SubmitterConfig holds the terminal settings the submitter needs.
type SubmitterConfig struct {
	TerminalID  string
	Location    *time.Location
	Store       receipt.StoreInfo
	HookTimeout time.Duration
}

// SaleSubmitter turns the cart into a committed sale. It sends exactly one
// CreateSale call per Commit and refuses to start a second submission while
// one is in flight.
type SaleSubmitter struct {
	mu    sync.Mutex
	state SubmitState

	cart    *domain.Cart
	creator SaleCreator
	events  EventPublisher
	journal repository.SaleJournal
	recent  *RecentSales
	cfg     SubmitterConfig
	logger  *slog.Logger

	hooks sync.WaitGroup
}

// NewSaleSubmitter creates a submitter for the terminal's cart. events and
// journal may be nil.
func NewSaleSubmitter(
	cart *domain.Cart,
	creator SaleCreator,
	events EventPublisher,
	journal repository.SaleJournal,
	recent *RecentSales,
	cfg SubmitterConfig,
	logger *slog.Logger,
) *SaleSubmitter {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = 5 * time.Second
	}
	return &SaleSubmitter{
		state:   StateIdle,
		cart:    cart,
		creator: creator,
		events:  events,
		journal: journal,
		recent:  recent,
		cfg:     cfg,
		logger:  logger,
	}
}

// State returns the current submission state.
func (s *SaleSubmitter) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Commit submits the cart as a sale paid with method.
//
// On success the committed lines leave the cart and the sale is returned
// with its receipt. On a rejection or submission failure the cart is left
// as it was, so the cashier can fix it or retry; a retry of an unchanged
// cart carries the same idempotency key.
func (s *SaleSubmitter) Commit(ctx context.Context, method domain.PaymentMethod) (result *CommitResult, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "sale.commit",
		trace.WithAttributes(attribute.String("payment_method", string(method))),
	)
	defer func() { tracing.EndSpan(span, err) }()

	snap, req, err := s.begin(method)
	if err != nil {
		return nil, err
	}
	defer s.release()
	span.SetAttributes(
		attribute.String("idempotency_key", req.IdempotencyKey),
		attribute.Int("lines", len(req.Items)),
	)

	start := time.Now()
	sale, err := s.creator.CreateSale(ctx, req)
	saleCommitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(ctx, req, err)
	}

	s.cart.Settle(snap)
	if s.recent != nil {
		s.recent.Add(*sale)
	}
	s.finish(StateCommitted)
	saleCommitsTotal.WithLabelValues(outcomeCommitted).Inc()

	s.logger.InfoContext(ctx, "sale committed",
		slog.String("sale_id", sale.ID),
		slog.String("idempotency_key", req.IdempotencyKey),
		slog.Int64("total_amount", sale.TotalAmount),
		slog.String("payment_method", string(sale.PaymentMethod)),
	)

	s.afterCommit(ctx, *sale, req.IdempotencyKey)

	return &CommitResult{
		Sale:    *sale,
		Receipt: receipt.New(s.cfg.Store, *sale),
	}, nil
}

// begin validates the request and moves to StateSubmitting.
func (s *SaleSubmitter) begin(method domain.PaymentMethod) (domain.CartSnapshot, domain.SaleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSubmitting {
		saleCommitsTotal.WithLabelValues(outcomeBusy).Inc()
		return domain.CartSnapshot{}, domain.SaleRequest{}, domain.ErrAlreadySubmitting
	}

	snap := s.cart.Snapshot()
	req, err := domain.NewSaleRequest(snap, method)
	if err != nil {
		saleCommitsTotal.WithLabelValues(outcomeInvalid).Inc()
		return domain.CartSnapshot{}, domain.SaleRequest{}, err
	}

	s.state = StateSubmitting
	return snap, req, nil
}

// release fails a commit that left without finishing, such as one whose
// CreateSale panicked, so the next Commit is not refused forever.
func (s *SaleSubmitter) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		s.state = StateFailed
	}
}

func (s *SaleSubmitter) finish(state SubmitState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// fail records a failed submission and normalizes err: anything that is not
// a business rejection is reported as a submission error.
func (s *SaleSubmitter) fail(ctx context.Context, req domain.SaleRequest, err error) error {
	s.finish(StateFailed)

	var rejected *domain.SaleRejectedError
	if errors.As(err, &rejected) {
		saleCommitsTotal.WithLabelValues(outcomeRejected).Inc()
		s.logger.WarnContext(ctx, "sale rejected by backend",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("code", rejected.Code),
			slog.String("reason", rejected.Reason),
		)
		return err
	}

	saleCommitsTotal.WithLabelValues(outcomeFailed).Inc()
	s.logger.ErrorContext(ctx, "sale submission failed",
		slog.String("idempotency_key", req.IdempotencyKey),
		slog.String("error", err.Error()),
	)

	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		return err
	}
	return &domain.SubmissionError{Err: err}
}

// afterCommit publishes the commit event and journals the sale in the
// background. Neither can fail the commit.
func (s *SaleSubmitter) afterCommit(ctx context.Context, sale domain.Sale, idempotencyKey string) {
	if s.events == nil && s.journal == nil {
		return
	}
	day := domain.SaleDay(sale.CreatedAt, s.cfg.Location)

	s.hooks.Add(1)
	go func() {
		defer s.hooks.Done()

		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HookTimeout)
		defer cancel()

		if s.events != nil {
			if err := s.events.PublishSaleCommitted(hctx, sale, idempotencyKey, day); err != nil {
				s.logger.WarnContext(hctx, "failed to publish sale.committed event",
					slog.String("sale_id", sale.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if s.journal != nil {
			if err := s.journal.Append(hctx, s.cfg.TerminalID, sale, day); err != nil {
				s.logger.WarnContext(hctx, "failed to journal sale",
					slog.String("sale_id", sale.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}()
}

// Wait blocks until background post-commit work has finished.
func (s *SaleSubmitter) Wait() {
	s.hooks.Wait()
}

// RecentSales keeps the last few committed sales so their receipts can be
// reprinted before the next ledger reload.
type RecentSales struct {
	mu    sync.Mutex
	max   int
	sales []domain.Sale
}

// NewRecentSales keeps up to size sales.
func NewRecentSales(size int) *RecentSales {
	if size < 1 {
		size = 1
	}
	return &RecentSales{max: size}
}

// Add remembers a sale, evicting the oldest when full.
func (r *RecentSales) Add(sale domain.Sale) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sales = append(r.sales, sale)
	if over := len(r.sales) - r.max; over > 0 {
		r.sales = r.sales[over:]
	}
}

// Find returns a remembered sale by id.
func (r *RecentSales) Find(id string) (domain.Sale, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.sales) - 1; i >= 0; i-- {
		if r.sales[i].ID == id {
			return r.sales[i], true
		}
	}
	return domain.Sale{}, false
}
