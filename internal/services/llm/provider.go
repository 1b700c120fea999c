package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/bizaudit/internal/common"
	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/metrics"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ContentRequest represents a provider-agnostic content generation request
type ContentRequest struct {
	Messages          []interfaces.Message
	Model             string // Empty uses the default provider's configured model
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
	JSONOutput        bool // Ask the provider for a JSON MIME type where supported
}

// ContentResponse represents a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
	Duration time.Duration
}

// Provider defines the interface for AI content generation
type Provider interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
	GetProviderType() ProviderType
	Close() error
}

// NewUserPrompt builds a single-turn request
func NewUserPrompt(prompt string, temperature float32) *ContentRequest {
	return &ContentRequest{
		Messages:    []interfaces.Message{{Role: interfaces.RoleUser, Content: prompt}},
		Temperature: temperature,
	}
}

// Config is the explicit configuration of a ProviderFactory
type Config struct {
	Gemini common.GeminiConfig
	Claude common.ClaudeConfig
	LLM    common.LLMConfig
}

// ProviderFactory creates and manages AI providers. It makes exactly one
// provider call per GenerateContent; retrying is the caller's concern.
type ProviderFactory struct {
	config  Config
	logger  arbor.ILogger
	metrics *metrics.Metrics

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient *anthropic.Client
	limiters     map[ProviderType]*rate.Limiter
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(config Config, logger arbor.ILogger, m *metrics.Metrics) *ProviderFactory {
	f := &ProviderFactory{
		config:   config,
		logger:   logger,
		metrics:  m,
		limiters: make(map[ProviderType]*rate.Limiter),
	}
	if l := newLimiter(config.Gemini.RateLimit); l != nil {
		f.limiters[ProviderGemini] = l
	}
	if l := newLimiter(config.Claude.RateLimit); l != nil {
		f.limiters[ProviderClaude] = l
	}
	return f
}

// newLimiter returns a limiter allowing one call per interval, or nil when disabled
func newLimiter(interval string) *rate.Limiter {
	d := common.ParseDurationOr(interval, 0)
	if d <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// GetProviderType returns the configured default provider
func (f *ProviderFactory) GetProviderType() ProviderType {
	return ProviderType(f.config.LLM.DefaultProvider)
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-haiku-4-5" or "claude/claude-haiku-4-5" -> Claude
// - "gemini-1.5-flash" or "gemini/gemini-1.5-flash" -> Gemini
// - Empty string -> default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	model = strings.ToLower(model)

	switch {
	case model == "":
		return f.GetProviderType()
	case strings.HasPrefix(model, "claude/"), strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "google/"), strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	default:
		return f.GetProviderType()
	}
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the configured model for a provider
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	if provider == ProviderClaude {
		return f.config.Claude.Model
	}
	return f.config.Gemini.Model
}

// GetGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	apiKey := f.config.Gemini.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured: %w", ErrProviderUnavailable)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// GetClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) GetClaudeClient(ctx context.Context) (*anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeClient != nil {
		return f.claudeClient, nil
	}

	apiKey := f.config.Claude.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("claude API key is not configured: %w", ErrProviderUnavailable)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claudeClient = &client
	return f.claudeClient, nil
}

// GenerateContent makes a single call to the provider selected by request.Model
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := f.DetectProvider(request.Model)
	model := f.NormalizeModel(request.Model)
	if model == "" {
		model = f.GetDefaultModel(provider)
	}

	if limiter := f.limiters[provider]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limiter: %w", provider, err)
		}
	}

	if timeout := f.callTimeout(provider); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Msg("Generating content with provider")

	start := time.Now()
	var (
		resp *ContentResponse
		err  error
	)
	switch provider {
	case ProviderClaude:
		resp, err = f.generateWithClaude(ctx, request, model)
	default:
		resp, err = f.generateWithGemini(ctx, request, model)
	}
	elapsed := time.Since(start)

	f.metrics.ObserveProviderCall(string(provider), outcomeLabel(err), elapsed)

	if err != nil {
		f.logger.Warn().
			Str("provider", string(provider)).
			Str("model", model).
			Dur("duration", elapsed).
			Err(err).
			Msg("Provider call failed")
		return nil, err
	}

	resp.Duration = elapsed
	f.logger.Info().
		Str("provider", string(provider)).
		Str("model", model).
		Dur("duration", elapsed).
		Int("response_length", len(resp.Text)).
		Msg("Provider call completed")

	return resp, nil
}

func (f *ProviderFactory) callTimeout(provider ProviderType) time.Duration {
	if provider == ProviderClaude {
		return common.ParseDurationOr(f.config.Claude.Timeout, 0)
	}
	return common.ParseDurationOr(f.config.Gemini.Timeout, 0)
}

// Close releases provider clients
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.geminiClient = nil
	f.claudeClient = nil
	return nil
}
