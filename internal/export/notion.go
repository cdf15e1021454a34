package export

import (
	"context"
	"fmt"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/jomei/notionapi"
)

// transactionIDProperty holds the ledger id on every published page and is
// used to skip records that were published before.
const transactionIDProperty = "Transaction ID"

// NotionService defines the subset of the Notion API used for publishing.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService with github.com/jomei/notionapi.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a NotionClient with the provided integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase queries a Notion database.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

// PublishResult counts what happened to each record.
type PublishResult struct {
	Created int  `json:"created"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	DryRun  bool `json:"dry_run"`
}

// NotionPublisher copies transactions into a Notion database.
type NotionPublisher struct {
	notion     NotionService
	databaseID string
}

// NewNotionPublisher creates a publisher for databaseID.
func NewNotionPublisher(notion NotionService, databaseID string) *NotionPublisher {
	return &NotionPublisher{notion: notion, databaseID: databaseID}
}

// Publish creates one page per transaction not yet present in the database.
// A failure on a single page is logged and counted; it does not stop the run.
func (p *NotionPublisher) Publish(ctx context.Context, transactions []domain.TransactionRecord, dryRun bool) (PublishResult, error) {
	result := PublishResult{DryRun: dryRun}
	if len(transactions) == 0 {
		return result, ErrNothingToExport
	}
	log := logger.FromContext(ctx)

	existing, err := p.existingTransactionIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("Publish: %w", err)
	}

	log.Info().
		Int("transaction_count", len(transactions)).
		Int("notion_page_count", len(existing)).
		Bool("dry_run", dryRun).
		Msg("Publishing transactions to Notion")

	for _, tx := range transactions {
		if existing[tx.ID] {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
			result.Created++
			continue
		}

		page, err := p.notion.CreatePage(ctx, p.databaseID, TransactionProperties(tx))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		log.Debug().Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		existing[tx.ID] = true
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Notion publish completed")

	return result, nil
}

func (p *NotionPublisher) existingTransactionIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := p.notion.QueryDatabase(ctx, p.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("existingTransactionIDs: %w", err)
		}
		for _, page := range resp.Results {
			if id := pageTransactionID(page); id != "" {
				ids[id] = true
			}
		}

		if !resp.HasMore {
			return ids, nil
		}
		cursor = resp.NextCursor
	}
}

func pageTransactionID(page notionapi.Page) string {
	switch prop := page.Properties[transactionIDProperty].(type) {
	case *notionapi.RichTextProperty:
		return firstPlainText(prop.RichText)
	case notionapi.RichTextProperty:
		return firstPlainText(prop.RichText)
	}
	return ""
}

func firstPlainText(texts []notionapi.RichText) string {
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}}
}

// TransactionProperties maps a transaction onto the Notion database columns:
// Description (title), Transaction ID, Date, Amount, Type, Category, Counterparty.
func TransactionProperties(tx domain.TransactionRecord) notionapi.Properties {
	date := notionapi.Date(tx.Date)
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		transactionIDProperty: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Direction.Label()},
		},
	}

	if tx.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}
	if tx.Counterparty != "" {
		props["Counterparty"] = notionapi.RichTextProperty{
			RichText: richText(tx.Counterparty),
		}
	}

	return props
}
