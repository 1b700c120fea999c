// Package generator turns an audit request into a validated report: it
// renders the prompt, calls the model, parses and validates the output,
// retries with linear backoff and paces progress checkpoints.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/metrics"
	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/schema"
	"github.com/ternarybob/bizaudit/internal/services/llm"
	"github.com/ternarybob/bizaudit/internal/templates"
)

// ContentGenerator is the model invocation the generator depends on.
// *llm.ProviderFactory satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error)
}

// Config controls report generation
type Config struct {
	Model        string // Empty uses the provider default
	Temperature  float32
	MaxAttempts  int
	BackoffUnit  time.Duration
	Pace         time.Duration
	TemplatesDir string
}

// Generator produces audit reports
type Generator struct {
	provider ContentGenerator
	schema   *schema.Node
	prompt   *templates.Template
	config   Config
	retrier  Retrier
	pacer    Pacer
	logger   arbor.ILogger
	metrics  *metrics.Metrics
}

// NewGenerator loads the audit prompt template and builds a generator
func NewGenerator(provider ContentGenerator, config Config, logger arbor.ILogger, m *metrics.Metrics) (*Generator, error) {
	tmpl, err := templates.GetTemplate(templates.NameAudit, config.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit prompt: %w", err)
	}
	if config.Temperature <= 0 {
		config.Temperature = tmpl.Temperature
	}

	g := &Generator{
		provider: provider,
		schema:   schema.AuditReport(),
		prompt:   tmpl,
		config:   config,
		pacer:    Pacer{Pace: config.Pace, Sleep: SleepContext},
		logger:   logger,
		metrics:  m,
	}
	g.retrier = Retrier{
		MaxAttempts: config.MaxAttempts,
		Unit:        config.BackoffUnit,
		Sleep:       SleepContext,
		Logger:      logger,
		OnAttempt: func(attempt int, err error) {
			m.IncGenerationAttempt(attemptOutcome(err))
		},
	}
	return g, nil
}

// WithSleeper replaces the backoff and pacing sleeper, used by tests
func (g *Generator) WithSleeper(sleep Sleeper) *Generator {
	g.retrier.Sleep = sleep
	g.pacer.Sleep = sleep
	return g
}

// Prompt renders the full instruction prompt for a request
func (g *Generator) Prompt(req models.AuditRequest) (string, error) {
	schemaJSON, err := g.schema.Template()
	if err != nil {
		return "", fmt.Errorf("failed to render report schema: %w", err)
	}
	return templates.RenderAudit(g.prompt, req, schemaJSON)
}

// Generate produces a validated report for req. After success it paces
// progress over the report's top-level keys before returning.
func (g *Generator) Generate(ctx context.Context, req models.AuditRequest, progress ProgressFunc) (json.RawMessage, error) {
	prompt, err := g.Prompt(req)
	if err != nil {
		return nil, err
	}

	var report json.RawMessage
	err = g.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		raw, err := g.attempt(ctx, prompt)
		if err != nil {
			return err
		}
		report = raw
		g.logger.Debug().
			Int("attempt", attempt).
			Str("business", req.BusinessName).
			Msg("Report generated and validated")
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys, err := TopLevelKeys(report)
	if err != nil {
		return nil, fmt.Errorf("failed to read report sections: %w", err)
	}
	if err := g.pacer.Emit(ctx, keys, progress); err != nil {
		return nil, fmt.Errorf("generation cancelled while reporting progress: %w", err)
	}

	return report, nil
}

// attempt is one invoke, parse and validate pass
func (g *Generator) attempt(ctx context.Context, prompt string) (json.RawMessage, error) {
	request := llm.NewUserPrompt(prompt, g.config.Temperature)
	request.Model = g.config.Model
	request.JSONOutput = true

	resp, err := g.provider.GenerateContent(ctx, request)
	if err != nil {
		return nil, err
	}

	value, raw, err := ParseOutput(resp.Text)
	if err != nil {
		return nil, err
	}

	if err := schema.Validate(value, g.schema); err != nil {
		return nil, err
	}

	return raw, nil
}
