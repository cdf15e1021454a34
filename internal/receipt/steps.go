package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/spendquest/internal/domain"
	"google.golang.org/genai"
)

// Step is a single stage of the extraction pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps.
type State struct {
	Image     []byte
	MIMEType  string
	MediaType string
	RawText   string
	Fields    map[string]interface{}
	Draft     *domain.DraftTransaction
}

// ValidateStep rejects uploads that are not small images.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Execute(ctx context.Context, state *State) error {
	mediaType, err := ValidateImage(state.Image, state.MIMEType)
	if err != nil {
		return err
	}
	state.MediaType = mediaType
	return nil
}

// GenerateStep sends the image to the model. It makes exactly one call.
type GenerateStep struct {
	Generator ContentGenerator
	Model     string
}

func (s *GenerateStep) Name() string { return "generate" }

func (s *GenerateStep) Execute(ctx context.Context, state *State) error {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(userPrompt),
			genai.NewPartFromBytes(state.Image, state.MediaType),
		}, genai.RoleUser),
	}

	resp, err := s.Generator.GenerateContent(ctx, s.Model, contents, generateConfig())
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: model returned status %d %s: %w", ErrExtractionFailed, apiErr.Code, apiErr.Status, err)
		}
		return fmt.Errorf("%w: generate content: %w", ErrExtractionFailed, err)
	}
	if resp == nil {
		return fmt.Errorf("%w: empty response from model", ErrExtractionFailed)
	}

	text := resp.Text()
	if text == "" {
		return fmt.Errorf("%w: empty response from model", ErrExtractionFailed)
	}
	state.RawText = text
	return nil
}

// DecodeStep parses the model text into a JSON object.
type DecodeStep struct{}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, state *State) error {
	fields, err := decodeObject(state.RawText)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	state.Fields = fields
	return nil
}

// MapStep converts the decoded object into a draft transaction.
type MapStep struct{}

func (s *MapStep) Name() string { return "map" }

func (s *MapStep) Execute(ctx context.Context, state *State) error {
	state.Draft = transformModelOutputToDraft(state.Fields)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("%s step failed: %w", step.Name(), err)
		}
	}
	return nil
}

// NewExtractionPipeline creates the standard validate, generate, decode, map pipeline.
func NewExtractionPipeline(generator ContentGenerator, model string) *Pipeline {
	return NewPipeline(
		&ValidateStep{},
		&GenerateStep{Generator: generator, Model: model},
		&DecodeStep{},
		&MapStep{},
	)
}
