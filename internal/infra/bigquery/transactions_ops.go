// Package bigquery is a ledger source backed by the finance.transactions
// table in BigQuery.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/logger"
	"google.golang.org/api/iterator"
)

const (
	DefaultDatasetID  = "finance"
	transactionsTable = "transactions"

	// DefaultRecentLimit caps how many transactions a snapshot carries.
	DefaultRecentLimit = 500
)

// Config identifies the ledger table and the user whose rows are read.
type Config struct {
	ProjectID   string
	DatasetID   string
	UserID      string
	RecentLimit int

	// Location anchors DATE and DATETIME columns, which carry no zone.
	// Defaults to time.Local.
	Location *time.Location
}

// Repository reads and writes one user's ledger rows. It holds a shared
// BigQuery client.
type Repository struct {
	client *bigquery.Client
	cfg    Config
	now    func() time.Time
}

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("NewRepository: project id is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("NewRepository: user id is required")
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, cfg), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, cfg Config) *Repository {
	if cfg.DatasetID == "" {
		cfg.DatasetID = DefaultDatasetID
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Repository{client: client, cfg: cfg, now: time.Now}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Snapshot returns the user's balance, computed as the sum of signed amounts
// over every row, and the most recent transactions, newest first.
func (r *Repository) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	balance, err := r.queryBalance(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("Snapshot: %w", err)
	}

	rows, err := r.queryRecent(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("Snapshot: %w", err)
	}

	records := make([]domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord(r.cfg.Location))
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("user_id", r.cfg.UserID).
		Int("transaction_count", len(records)).
		Msg("Loaded ledger snapshot from BigQuery")

	return domain.Snapshot{
		Balance:      ratToDecimal(balance),
		Transactions: domain.SortMostRecentFirst(records),
		FetchedAt:    r.now(),
	}, nil
}

// CreateTransaction inserts one row with a fresh transaction id.
func (r *Repository) CreateTransaction(ctx context.Context, tx domain.NewTransaction) error {
	row := newTransactionRow(r.cfg.UserID, tx, r.now())

	inserter := r.client.DatasetInProject(r.cfg.ProjectID, r.cfg.DatasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, []*TransactionRow{row}); err != nil {
		return fmt.Errorf("CreateTransaction: inserting row: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", row.TransactionID).
		Str("user_id", r.cfg.UserID).
		Msg("Transaction inserted")
	return nil
}

func (r *Repository) tableName() string {
	return fmt.Sprintf("`%s.%s.%s`", r.cfg.ProjectID, r.cfg.DatasetID, transactionsTable)
}

func (r *Repository) queryBalance(ctx context.Context) (*big.Rat, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT IFNULL(SUM(amount), 0) AS balance
		FROM %s
		WHERE user_id = @user_id
	`, r.tableName()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: r.cfg.UserID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryBalance: query read: %w", err)
	}

	var row balanceRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, fmt.Errorf("queryBalance: iter next: %w", err)
	}
	return row.Balance, nil
}

func (r *Repository) queryRecent(ctx context.Context) ([]*TransactionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			booking_datetime,
			amount,
			direction,
			raw_description,
			category_name,
			counterparty,
			created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY transaction_date DESC, created_ts DESC
		LIMIT @limit
	`, r.tableName()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: r.cfg.UserID},
		{Name: "limit", Value: r.cfg.RecentLimit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryRecent: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queryRecent: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
