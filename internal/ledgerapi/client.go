// Package ledgerapi reads and writes the user's ledger through the account
// REST API.
package ledgerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const (
	balancePath      = "/account/balance"
	transactionsPath = "/account/transactions"
	budgetsPath      = "/account/budgets"
)

// DefaultTimeout bounds each request to the account API.
const DefaultTimeout = 15 * time.Second

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Config holds the account API connection settings.
type Config struct {
	BaseURL string
	Token   string
	UserID  string
	Timeout time.Duration

	// Location anchors dates the API sends without a zone. Defaults to
	// time.Local.
	Location *time.Location
}

// Client is a ledger source backed by the account REST API.
type Client struct {
	http *resty.Client
	loc  *time.Location
	now  func() time.Time
}

// New creates a Client. Requests carry the bearer token and the userId header.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("userId", cfg.UserID)
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Client{http: httpClient, loc: loc, now: time.Now}
}

// Snapshot fetches the balance and the transaction list concurrently.
// Transactions are returned most recent first.
func (c *Client) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var balance balanceResponse
	var list transactionsResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, balancePath, &balance)
	})
	g.Go(func() error {
		return c.get(gctx, transactionsPath, &list)
	})
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("Snapshot: %w", err)
	}

	records := make([]domain.TransactionRecord, 0, len(list.Transactions))
	for _, dto := range list.Transactions {
		records = append(records, dto.toRecord(c.loc))
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("transaction_count", len(records)).
		Msg("Fetched ledger snapshot")

	return domain.Snapshot{
		Balance:      balance.Balance,
		Transactions: domain.SortMostRecentFirst(records),
		FetchedAt:    c.now(),
	}, nil
}

// ListBudgets returns the user's monthly budgets. The endpoint may answer
// with a bare array or with {"budgets": [...]}.
func (c *Client) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	resp, err := c.http.R().SetContext(ctx).Get(budgetsPath)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: request: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("ListBudgets: %w", err)
	}

	var dtos []budgetDTO
	if err := json.Unmarshal(resp.Body(), &dtos); err != nil {
		var wrapped struct {
			Budgets []budgetDTO `json:"budgets"`
		}
		if err2 := json.Unmarshal(resp.Body(), &wrapped); err2 != nil {
			return nil, fmt.Errorf("ListBudgets: decode response: %w", err)
		}
		dtos = wrapped.Budgets
	}

	budgets := make([]domain.Budget, 0, len(dtos))
	for _, dto := range dtos {
		budgets = append(budgets, dto.toBudget())
	}
	return budgets, nil
}

// CreateTransaction records a new transaction in the ledger.
func (c *Client) CreateTransaction(ctx context.Context, tx domain.NewTransaction) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(newCreateTransactionRequest(tx)).
		Post(transactionsPath)
	if err != nil {
		return fmt.Errorf("CreateTransaction: request: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("amount", tx.Amount.String()).
		Str("direction", string(tx.Direction)).
		Msg("Transaction recorded")
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode(), truncate(string(resp.Body()), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
