package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/services/llm"
	"github.com/ternarybob/bizaudit/internal/templates"
)

// FactsGenerator produces short facts about a business to show while its
// report is generating. Calls are not retried.
type FactsGenerator struct {
	provider    ContentGenerator
	prompt      *templates.Template
	model       string
	count       int
	temperature float32
	logger      arbor.ILogger
}

// NewFactsGenerator loads the facts prompt template
func NewFactsGenerator(provider ContentGenerator, model string, count int, temperature float32, templatesDir string, logger arbor.ILogger) (*FactsGenerator, error) {
	tmpl, err := templates.GetTemplate(templates.NameFacts, templatesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts prompt: %w", err)
	}
	if temperature <= 0 {
		temperature = tmpl.Temperature
	}
	if count <= 0 {
		count = 10
	}
	return &FactsGenerator{
		provider:    provider,
		prompt:      tmpl,
		model:       model,
		count:       count,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Generate returns a non-empty list of facts. Every failure is reported as
// ErrFactsUnavailable wrapping the cause.
func (f *FactsGenerator) Generate(ctx context.Context, req models.AuditRequest) ([]string, error) {
	facts, err := f.generate(ctx, req)
	if err != nil {
		f.logger.Warn().Err(err).Str("business", req.BusinessName).Msg("Loader facts generation failed")
		return nil, fmt.Errorf("%w: %v", ErrFactsUnavailable, err)
	}
	return facts, nil
}

func (f *FactsGenerator) generate(ctx context.Context, req models.AuditRequest) ([]string, error) {
	prompt, err := templates.RenderFacts(f.prompt, req, f.count)
	if err != nil {
		return nil, err
	}

	request := llm.NewUserPrompt(prompt, f.temperature)
	request.Model = f.model

	resp, err := f.provider.GenerateContent(ctx, request)
	if err != nil {
		return nil, err
	}

	var items []any
	if err := json.Unmarshal([]byte(StripCodeFence(resp.Text)), &items); err != nil {
		return nil, &ParseError{Snippet: snippet(resp.Text), Err: err}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("model returned no facts")
	}

	facts := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("fact %d is not a string", i)
		}
		facts = append(facts, s)
	}
	return facts, nil
}
