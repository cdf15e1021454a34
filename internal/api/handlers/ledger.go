package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/spendquest/internal/analytics"
	"github.com/dvloznov/spendquest/internal/api/middleware"
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/export"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/dvloznov/spendquest/internal/query"
	"github.com/shopspring/decimal"
)

// RecentCount is the number of transactions shown on the dashboard.
const RecentCount = 6

// DashboardHandler serves the wallet overview.
type DashboardHandler struct {
	ledger     LedgerSource
	windowSize int
	now        func() time.Time
}

// NewDashboardHandler creates a new dashboard handler. windowSize bounds the
// trajectory window.
func NewDashboardHandler(ledger LedgerSource, windowSize int) *DashboardHandler {
	if windowSize <= 0 {
		windowSize = analytics.DefaultWindowSize
	}
	return &DashboardHandler{ledger: ledger, windowSize: windowSize, now: time.Now}
}

type dashboardResponse struct {
	Balance     decimal.Decimal            `json:"balance"`
	Trajectory  []domain.BalancePoint      `json:"trajectory"`
	Approximate bool                       `json:"approximate"`
	Month       analytics.MonthSummary     `json:"month"`
	Budgets     []analytics.BudgetStatus   `json:"budgets,omitempty"`
	Recent      []domain.TransactionRecord `json:"recent"`
	FetchedAt   time.Time                  `json:"fetched_at"`
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	snap, err := h.ledger.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch ledger snapshot")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to load ledger")
		return
	}

	now := h.now()
	window := analytics.Window(snap.Transactions, h.windowSize)
	approximate := !analytics.IsChronological(window)
	if approximate {
		log.Warn().
			Int("window", len(window)).
			Msg("Transaction window is not date ordered, trajectory is approximate")
	}

	resp := dashboardResponse{
		Balance:     snap.Balance,
		Trajectory:  analytics.Reconstruct(snap.Balance, window),
		Approximate: approximate,
		Month:       analytics.AggregateMonth(snap.Transactions, now),
		Recent:      analytics.Window(snap.Transactions, RecentCount),
		FetchedAt:   snap.FetchedAt,
	}

	if lister, ok := h.ledger.(BudgetLister); ok {
		budgets, err := lister.ListBudgets(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load budgets")
		} else {
			resp.Budgets = analytics.BudgetUsage(snap.Transactions, budgets, now)
		}
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// TransactionsHandler serves the transaction list and its exports.
type TransactionsHandler struct {
	ledger    LedgerSource
	pageSize  int
	csvOpts   export.Options
	archiver  ExportArchiver
	publisher ExportPublisher
	metrics   Recorder
	now       func() time.Time
}

// TransactionsOption configures a TransactionsHandler.
type TransactionsOption func(*TransactionsHandler)

// WithArchiver enables archive=true on exports.
func WithArchiver(a ExportArchiver) TransactionsOption {
	return func(h *TransactionsHandler) { h.archiver = a }
}

// WithPublisher enables the publish endpoint.
func WithPublisher(p ExportPublisher) TransactionsOption {
	return func(h *TransactionsHandler) { h.publisher = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(m Recorder) TransactionsOption {
	return func(h *TransactionsHandler) { h.metrics = m }
}

// WithCSVOptions sets the CSV date layout and location.
func WithCSVOptions(opts export.Options) TransactionsOption {
	return func(h *TransactionsHandler) { h.csvOpts = opts }
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger LedgerSource, pageSize int, opts ...TransactionsOption) *TransactionsHandler {
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	h := &TransactionsHandler{ledger: ledger, pageSize: pageSize, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics = recorderOrNoop(h.metrics)
	return h
}

// ListTransactions handles GET /api/transactions
// The page parameter is taken as given; clients reset it to 1 when they
// change search or category.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.ledger.Snapshot(ctx)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to fetch ledger snapshot")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to load transactions")
		return
	}

	q := r.URL.Query()
	page := query.Run(snap.Transactions, q.Get("search"), q.Get("category"), queryInt(r, "page", 1), h.pageSize)
	middleware.WriteJSON(w, http.StatusOK, page)
}

// ExportTransactions handles GET /api/transactions/export
func (h *TransactionsHandler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	filtered, ok := h.filtered(w, r)
	if !ok {
		return
	}

	now := h.now()
	doc, err := export.CSV(filtered, now, h.csvOpts)
	h.metrics.RecordExport("csv", err)
	if err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			middleware.WriteError(w, http.StatusNotFound, "No transactions to export")
			return
		}
		log.Error().Err(err).Msg("Failed to build CSV export")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	if queryBool(r, "archive") {
		if h.archiver == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Export archive is not configured")
			return
		}
		uri, err := h.archiver.Archive(ctx, doc, now)
		h.metrics.RecordExport("archive", err)
		if err != nil {
			log.Error().Err(err).Str("filename", doc.Filename).Msg("Failed to archive export")
			middleware.WriteError(w, http.StatusBadGateway, "Failed to archive export")
			return
		}
		w.Header().Set("X-Archive-URI", uri)
	}

	log.Info().
		Int("rows", len(filtered)).
		Str("filename", doc.Filename).
		Msg("Transactions exported")

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		log.Debug().Err(err).Str("filename", doc.Filename).Msg("Failed to write export body")
	}
}

// PublishTransactions handles POST /api/transactions/publish
func (h *TransactionsHandler) PublishTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Publishing is not configured")
		return
	}

	filtered, ok := h.filtered(w, r)
	if !ok {
		return
	}

	result, err := h.publisher.Publish(ctx, filtered, queryBool(r, "dry_run"))
	h.metrics.RecordExport("notion", err)
	if err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			middleware.WriteError(w, http.StatusNotFound, "No transactions to publish")
			return
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to publish transactions")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to publish transactions")
		return
	}
	h.metrics.RecordPublish(result.Created, result.Skipped, result.Failed)

	middleware.WriteJSON(w, http.StatusOK, result)
}

// filtered loads the snapshot and applies the search and category filter
// from the query string. It writes the error response itself.
func (h *TransactionsHandler) filtered(w http.ResponseWriter, r *http.Request) ([]domain.TransactionRecord, bool) {
	ctx := r.Context()

	snap, err := h.ledger.Snapshot(ctx)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to fetch ledger snapshot")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to load transactions")
		return nil, false
	}

	q := r.URL.Query()
	return query.Apply(snap.Transactions, query.Filter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	}), true
}
