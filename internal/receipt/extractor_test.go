package receipt

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// MockGenerator is a mock implementation of ContentGenerator for testing.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Calls               int
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.Calls++
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return textResponse(`{}`), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func respondWith(text string) *MockGenerator {
	return &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(text), nil
		},
	}
}

var receiptImage = []byte{0x89, 'P', 'N', 'G'}

func TestExtract_FullReceipt(t *testing.T) {
	var gotModel string
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, config
			return textResponse(`{"amount": 12.50, "category": "Food", "date": "2024-05-01", "type": "debit", "description": "Cafe"}`), nil
		},
	}

	draft, err := NewExtractor(gen, "").Extract(context.Background(), receiptImage, "image/png")
	require.NoError(t, err)

	require.NotNil(t, draft.Amount)
	assert.Equal(t, "12.5", draft.Amount.String())
	assert.Equal(t, "Food", *draft.Category)
	assert.Equal(t, "2024-05-01", *draft.Date)
	assert.Equal(t, domain.Debit, *draft.Direction)
	assert.Equal(t, "Cafe", *draft.Description)

	assert.Equal(t, 1, gen.Calls)
	assert.Equal(t, DefaultModelName, gotModel)
	require.Len(t, gotContents, 1)
	require.Len(t, gotContents[0].Parts, 2)
	require.NotNil(t, gotContents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", gotContents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, receiptImage, gotContents[0].Parts[1].InlineData.Data)
	assert.Equal(t, "application/json", gotConfig.ResponseMIMEType)
	assert.Equal(t, []string{"amount", "category", "date", "type", "description"}, gotConfig.ResponseSchema.PropertyOrdering)
}

func TestExtract_Mapping(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantAmount    string
		wantDirection domain.Direction
		wantCategory  *string
		wantDate      *string
	}{
		{
			name:          "credit upper case",
			text:          `{"amount": 250, "type": "CREDIT"}`,
			wantAmount:    "250",
			wantDirection: domain.Credit,
		},
		{
			name:          "all nulls default to debit",
			text:          `{"amount": null, "category": null, "date": null, "type": null, "description": null}`,
			wantDirection: domain.Debit,
		},
		{
			name:          "unknown type is debit",
			text:          `{"type": "refund"}`,
			wantDirection: domain.Debit,
		},
		{
			name:          "wrong types are dropped",
			text:          `{"amount": "12.50", "category": 7, "date": false}`,
			wantDirection: domain.Debit,
		},
		{
			name:          "date kept verbatim",
			text:          "```json\n{\"amount\": 0.1, \"date\": \"yesterday\"}\n```",
			wantAmount:    "0.1",
			wantDirection: domain.Debit,
			wantDate:      strPtr("yesterday"),
		},
		{
			name:          "exact decimal amount",
			text:          `{"amount": 1234567.891}`,
			wantAmount:    "1234567.891",
			wantDirection: domain.Debit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := NewExtractor(respondWith(tt.text), "gemini-test").Extract(context.Background(), receiptImage, "image/jpeg")
			require.NoError(t, err)

			if tt.wantAmount == "" {
				assert.Nil(t, draft.Amount)
			} else {
				require.NotNil(t, draft.Amount)
				assert.Equal(t, tt.wantAmount, draft.Amount.String())
			}
			require.NotNil(t, draft.Direction)
			assert.Equal(t, tt.wantDirection, *draft.Direction)
			assert.Equal(t, tt.wantCategory, draft.Category)
			assert.Equal(t, tt.wantDate, draft.Date)
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name string
		gen  *MockGenerator
	}{
		{"malformed JSON", respondWith(`{"amount": `)},
		{"array top level", respondWith(`[{"amount": 1}]`)},
		{"plain text", respondWith(`I cannot read this receipt`)},
		{"empty text", respondWith(``)},
		{"no candidates", &MockGenerator{
			GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{}, nil
			},
		}},
		{"transport error", &MockGenerator{
			GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("connection reset")
			},
		}},
		{"server error status", &MockGenerator{
			GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := NewExtractor(tt.gen, "").Extract(context.Background(), receiptImage, "image/png")

			assert.Nil(t, draft)
			assert.ErrorIs(t, err, ErrExtractionFailed)
			assert.NotErrorIs(t, err, ErrInvalidImage)
			assert.Equal(t, 1, tt.gen.Calls, "extraction must not retry")
		})
	}
}

func TestExtract_InvalidImageMakesNoCall(t *testing.T) {
	gen := &MockGenerator{}
	extractor := NewExtractor(gen, "")

	_, err := extractor.Extract(context.Background(), receiptImage, "application/pdf")
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = extractor.Extract(context.Background(), make([]byte, MaxImageBytes+1), "image/png")
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = extractor.Extract(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyImage)

	assert.Equal(t, 0, gen.Calls)
}

func TestExtract_CanceledContext(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, ctx.Err()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(gen, "").Extract(ctx, receiptImage, "image/png")

	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func strPtr(s string) *string { return &s }
