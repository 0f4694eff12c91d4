package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/repository"
	apperrors "github.com/utafrali/posledger/pkg/errors"
	"github.com/utafrali/posledger/pkg/pagination"
	"github.com/utafrali/posledger/pkg/tracing"
)

// DateSource tells which path answered a sales-by-date query.
type DateSource string

// Date sources.
const (
	SourceRemote      DateSource = "remote"
	SourceFallback    DateSource = "fallback"
	SourceUnavailable DateSource = "unavailable"
)

// DateResult is the answer to a sales-by-date query.
type DateResult struct {
	Day    string        `json:"date"`
	Sales  []domain.Sale `json:"sales"`
	Source DateSource    `json:"source"`
}

// LedgerConfig holds the ledger settings.
type LedgerConfig struct {
	PageSize         int
	MaxPages         int
	Location         *time.Location
	RemoteDateFilter bool
	HookTimeout      time.Duration

	// ReloadInterval is the minimum spacing of on-demand reloads through
	// LoadAllSales. Zero disables the limit.
	ReloadInterval time.Duration
}

// LedgerAggregator rebuilds the complete sales history from the paginated
// listing and answers per-day queries, remotely when the backend can and
// from the last complete snapshot otherwise.
type LedgerAggregator struct {
	source SalesSource
	dated  DateFilteredSource
	cache  repository.LedgerCache
	events EventPublisher
	cfg    LedgerConfig
	logger *slog.Logger

	loadMu  sync.Mutex
	reloads *rate.Limiter
	current atomic.Pointer[domain.Ledger]
	now     func() time.Time
	hooks   sync.WaitGroup
}

// NewLedgerAggregator creates an aggregator over source. When source also
// implements DateFilteredSource and the remote filter is enabled, per-day
// queries go to the backend first. cache and events may be nil.
func NewLedgerAggregator(
	source SalesSource,
	cache repository.LedgerCache,
	events EventPublisher,
	cfg LedgerConfig,
	logger *slog.Logger,
) *LedgerAggregator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = 5 * time.Second
	}

	reloadEvery := rate.Inf
	if cfg.ReloadInterval > 0 {
		reloadEvery = rate.Every(cfg.ReloadInterval)
	}

	a := &LedgerAggregator{
		source:  source,
		cache:   cache,
		events:  events,
		cfg:     cfg,
		logger:  logger,
		reloads: rate.NewLimiter(reloadEvery, 1),
		now:     time.Now,
	}
	if cfg.RemoteDateFilter {
		if dated, ok := source.(DateFilteredSource); ok {
			a.dated = dated
		}
	}
	return a
}

// Snapshot returns the current ledger, or nil before the first load.
func (a *LedgerAggregator) Snapshot() *domain.Ledger {
	return a.current.Load()
}

// LoadAll walks the whole sales listing page by page and replaces the
// snapshot with the result. Loads never overlap. A failed or cancelled load
// returns a *domain.LedgerLoadError and leaves the previous snapshot in place.
func (a *LedgerAggregator) LoadAll(ctx context.Context) (ledger *domain.Ledger, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "ledger.load_all",
		trace.WithAttributes(attribute.Int("page_size", a.cfg.PageSize)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	start := time.Now()
	res, err := pagination.Walk[domain.Sale](ctx, a.cfg.PageSize, a.cfg.MaxPages, a.source.ListSales)
	if err != nil {
		return nil, a.abort(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, a.abort(ctx, &pagination.PageError{Page: res.Pages, Err: err})
	}

	ledger = domain.NewLedger(res.Items, a.now(), res.Pages)
	a.current.Store(ledger)

	ledgerLoadsTotal.WithLabelValues("ok").Inc()
	ledgerLoadDuration.Observe(time.Since(start).Seconds())
	ledgerSales.Set(float64(ledger.Len()))
	span.SetAttributes(attribute.Int("pages", res.Pages), attribute.Int("sales", ledger.Len()))

	a.logger.InfoContext(ctx, "sales history loaded",
		slog.Int("pages", res.Pages),
		slog.Int("records", len(res.Items)),
		slog.Int("sales", ledger.Len()),
		slog.Duration("duration", time.Since(start)),
	)

	a.afterLoad(ctx, ledger)
	return ledger, nil
}

func (a *LedgerAggregator) abort(ctx context.Context, err error) error {
	page, cause := 0, err
	var pe *pagination.PageError
	if errors.As(err, &pe) {
		page, cause = pe.Page, pe.Err
	}

	ledgerLoadsTotal.WithLabelValues("aborted").Inc()
	a.logger.WarnContext(ctx, "sales history load aborted, keeping previous snapshot",
		slog.Int("page", page),
		slog.String("error", cause.Error()),
	)
	return &domain.LedgerLoadError{Page: page, Err: cause}
}

// afterLoad caches the ledger and announces the reload in the background.
func (a *LedgerAggregator) afterLoad(ctx context.Context, ledger *domain.Ledger) {
	if a.cache == nil && a.events == nil {
		return
	}

	a.hooks.Add(1)
	go func() {
		defer a.hooks.Done()

		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HookTimeout)
		defer cancel()

		if a.cache != nil {
			if err := a.cache.Save(hctx, ledger); err != nil {
				a.logger.WarnContext(hctx, "failed to cache ledger", slog.String("error", err.Error()))
			}
		}
		if a.events != nil {
			if err := a.events.PublishLedgerReloaded(hctx, ledger); err != nil {
				a.logger.WarnContext(hctx, "failed to publish ledger.reloaded event", slog.String("error", err.Error()))
			}
		}
	}()
}

// Wait blocks until background post-load work has finished.
func (a *LedgerAggregator) Wait() {
	a.hooks.Wait()
}

// LoadAllSales reloads the history and returns it, newest first. A reload
// requested sooner than ReloadInterval after the previous one is served
// from the current snapshot, when there is one. A failed reload returns the
// *domain.LedgerLoadError and no sales.
func (a *LedgerAggregator) LoadAllSales(ctx context.Context) ([]domain.Sale, error) {
	if !a.reloads.Allow() {
		if ledger := a.Snapshot(); ledger != nil {
			ledgerLoadsTotal.WithLabelValues("throttled").Inc()
			a.logger.DebugContext(ctx, "reload requested too soon, serving current snapshot",
				slog.Time("loaded_at", ledger.LoadedAt),
			)
			return ledger.Sales, nil
		}
	}

	ledger, err := a.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if ledger.Sales == nil {
		return []domain.Sale{}, nil
	}
	return ledger.Sales, nil
}

// Restore installs the cached ledger when nothing has been loaded yet, so the
// date fallback works right after a restart.
func (a *LedgerAggregator) Restore(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}

	ledger, err := a.cache.Load(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			a.logger.DebugContext(ctx, "no cached ledger to restore")
			return nil
		}
		return err
	}

	if a.current.CompareAndSwap(nil, ledger) {
		ledgerSales.Set(float64(ledger.Len()))
		a.logger.InfoContext(ctx, "ledger restored from cache",
			slog.Int("sales", ledger.Len()),
			slog.Time("loaded_at", ledger.LoadedAt),
		)
	}
	return nil
}

// LoadForDate returns the sales of a calendar day (YYYY-MM-DD).
//
// The backend's date filter is tried first. If it is missing, disabled or
// failing, the current snapshot is filtered by local calendar day instead.
// With no snapshot at all the result is empty and the error is
// domain.ErrDateFallbackUnavailable.
func (a *LedgerAggregator) LoadForDate(ctx context.Context, day string) (result DateResult, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "ledger.load_for_date",
		trace.WithAttributes(attribute.String("date", day)),
	)
	defer func() {
		span.SetAttributes(attribute.String("source", string(result.Source)))
		tracing.EndSpan(span, err)
	}()

	day, err = domain.ParseDay(day)
	if err != nil {
		return DateResult{}, err
	}

	if a.dated != nil {
		sales, err := a.dated.ListSalesByDate(ctx, day)
		if err == nil {
			dateQueriesTotal.WithLabelValues(string(SourceRemote)).Inc()
			return DateResult{Day: day, Sales: domain.SortSales(domain.DedupSales(sales)), Source: SourceRemote}, nil
		}
		a.logger.InfoContext(ctx, "remote date filter failed, filtering local ledger",
			slog.String("date", day),
			slog.String("error", err.Error()),
		)
	}

	ledger := a.current.Load()
	if ledger == nil {
		dateQueriesTotal.WithLabelValues(string(SourceUnavailable)).Inc()
		return DateResult{Day: day, Sales: []domain.Sale{}, Source: SourceUnavailable}, domain.ErrDateFallbackUnavailable
	}

	dateQueriesTotal.WithLabelValues(string(SourceFallback)).Inc()
	return DateResult{Day: day, Sales: ledger.ForDay(day, a.cfg.Location), Source: SourceFallback}, nil
}

// LoadSalesForDate is LoadForDate for browsing: an unusable fallback is
// logged and answered with an empty result whose Source is
// SourceUnavailable. Only a malformed day is an error.
func (a *LedgerAggregator) LoadSalesForDate(ctx context.Context, day string) (DateResult, error) {
	res, err := a.LoadForDate(ctx, day)
	if errors.Is(err, domain.ErrDateFallbackUnavailable) {
		a.logger.WarnContext(ctx, "sales for date unavailable, answering empty",
			slog.String("date", res.Day),
			slog.String("error", err.Error()),
		)
		return res, nil
	}
	return res, err
}

// Location is the time zone calendar days are computed in.
func (a *LedgerAggregator) Location() *time.Location {
	return a.cfg.Location
}
