// Package receipt turns a receipt image into a draft transaction using a
// Gemini structured-output call.
package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/logger"
	"google.golang.org/genai"
)

// ContentGenerator is the part of the genai Models service used for extraction.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiGenerator creates a Gemini API client for apiKey. An empty
// baseURL uses the public endpoint.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL string) (ContentGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("NewGeminiGenerator: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	return client.Models, nil
}

// Extractor reads draft transactions from receipt images.
type Extractor struct {
	pipeline *Pipeline
	model    string
}

// NewExtractor creates an Extractor. An empty model selects DefaultModelName.
func NewExtractor(generator ContentGenerator, model string) *Extractor {
	if model == "" {
		model = DefaultModelName
	}
	return &Extractor{
		pipeline: NewExtractionPipeline(generator, model),
		model:    model,
	}
}

// Extract validates the image, sends it to the model once and maps the
// answer into a draft. Validation errors match ErrInvalidImage; everything
// after validation matches ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error) {
	log := logger.FromContext(ctx)
	state := &State{Image: image, MIMEType: mimeType}

	if err := e.pipeline.Execute(ctx, state); err != nil {
		log.Warn().
			Err(err).
			Str("model", e.model).
			Str("mime_type", mimeType).
			Int("image_bytes", len(image)).
			Msg("Receipt extraction failed")
		return nil, fmt.Errorf("Extract: %w", err)
	}

	log.Debug().
		Str("model", e.model).
		Bool("amount_found", state.Draft.Amount != nil).
		Msg("Receipt extracted")

	return state.Draft, nil
}
