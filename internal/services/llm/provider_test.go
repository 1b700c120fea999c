package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/bizaudit/internal/common"
	"github.com/ternarybob/bizaudit/internal/interfaces"
)

func newTestFactory(cfg Config) *ProviderFactory {
	return NewProviderFactory(cfg, arbor.NewLogger(), nil)
}

func defaultTestConfig() Config {
	c := common.NewDefaultConfig()
	return Config{Gemini: c.Gemini, Claude: c.Claude, LLM: c.LLM}
}

func candidate(reason genai.FinishReason, text string) *genai.Candidate {
	c := &genai.Candidate{FinishReason: reason}
	if text != "" {
		c.Content = genai.NewContentFromText(text, genai.RoleModel)
	}
	return c
}

func TestGeminiResponseText(t *testing.T) {
	text, err := geminiResponseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{candidate(genai.FinishReasonStop, `{"ok":true}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestGeminiResponseText_RefusalCarriesMarker(t *testing.T) {
	_, err := geminiResponseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{candidate(genai.FinishReasonRecitation, "")},
	})

	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	assert.Equal(t, ReasonRecitation, refusal.Reason)
	assert.Contains(t, err.Error(), "RECITATION")
}

func TestGeminiResponseText_BlockedPrompt(t *testing.T) {
	_, err := geminiResponseText(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason:        genai.BlockedReasonSafety,
			BlockReasonMessage: "blocked",
		},
	})

	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	assert.Equal(t, "SAFETY", refusal.Reason)
}

func TestGeminiResponseText_Empty(t *testing.T) {
	_, err := geminiResponseText(nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = geminiResponseText(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = geminiResponseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{candidate(genai.FinishReasonStop, "")},
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClaudeResponseText(t *testing.T) {
	text, err := claudeResponseText(&anthropic.Message{
		StopReason: anthropic.StopReasonEndTurn,
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "[\"a\","},
			{Type: "thinking", Thinking: "ignored"},
			{Type: "text", Text: "\"b\"]"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, text)
}

func TestClaudeResponseText_Refusal(t *testing.T) {
	_, err := claudeResponseText(&anthropic.Message{StopReason: anthropic.StopReasonRefusal})

	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	assert.Equal(t, ProviderClaude, refusal.Provider)
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429, Message: slow down"), true},
		{errors.New("Status: RESOURCE_EXHAUSTED"), true},
		{errors.New("Quota exceeded for project"), true},
		{fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimitError(tt.err), "%v", tt.err)
	}
}

func TestClassifyCallError(t *testing.T) {
	err := classifyCallError(ProviderGemini, errors.New("Error 429"))
	assert.ErrorIs(t, err, ErrRateLimited)

	raw := errors.New("dial tcp: timeout")
	err = classifyCallError(ProviderGemini, raw)
	assert.ErrorIs(t, err, raw)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "ok", outcomeLabel(nil))
	assert.Equal(t, "refused", outcomeLabel(&RefusalError{Provider: ProviderGemini, Reason: ReasonSafety}))
	assert.Equal(t, "rate_limited", outcomeLabel(classifyCallError(ProviderClaude, errors.New("429"))))
	assert.Equal(t, "empty", outcomeLabel(fmt.Errorf("x: %w", ErrEmptyResponse)))
	assert.Equal(t, "error", outcomeLabel(errors.New("other")))
}

func TestDetectProvider(t *testing.T) {
	f := newTestFactory(defaultTestConfig())

	assert.Equal(t, ProviderGemini, f.DetectProvider(""))
	assert.Equal(t, ProviderClaude, f.DetectProvider("claude-haiku-4-5"))
	assert.Equal(t, ProviderClaude, f.DetectProvider("anthropic/claude-haiku-4-5"))
	assert.Equal(t, ProviderGemini, f.DetectProvider("gemini/gemini-1.5-flash"))
	assert.Equal(t, ProviderGemini, f.DetectProvider("unknown-model"))

	cfg := defaultTestConfig()
	cfg.LLM.DefaultProvider = common.LLMProviderClaude
	assert.Equal(t, ProviderClaude, newTestFactory(cfg).DetectProvider(""))
}

func TestNormalizeModel(t *testing.T) {
	f := newTestFactory(defaultTestConfig())
	assert.Equal(t, "gemini-1.5-flash", f.NormalizeModel("google/gemini-1.5-flash"))
	assert.Equal(t, "claude-haiku-4-5", f.NormalizeModel("claude/claude-haiku-4-5"))
	assert.Equal(t, "gemini-1.5-flash", f.NormalizeModel("gemini-1.5-flash"))
}

func TestGenerateContent_MissingAPIKey(t *testing.T) {
	f := newTestFactory(defaultTestConfig())

	_, err := f.GenerateContent(context.Background(), NewUserPrompt("hi", 0.5))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "API key"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = f.GenerateContent(context.Background(), &ContentRequest{Model: "claude-haiku-4-5"})
	require.Error(t, err)
}

func TestClients_IgnoreEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("BIZAUDIT_GEMINI_API_KEY", "from-env")
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("BIZAUDIT_CLAUDE_API_KEY", "from-env")

	f := newTestFactory(Config{})
	client, err := f.GetGeminiClient(context.Background())
	assert.Nil(t, client)
	assert.Error(t, err)

	claude, err := f.GetClaudeClient(context.Background())
	assert.Nil(t, claude)
	assert.Error(t, err)
}

func TestClients_UseConfiguredKeys(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Gemini.APIKey = "gemini-key"
	cfg.Claude.APIKey = "claude-key"
	f := newTestFactory(cfg)
	defer f.Close()

	client, err := f.GetGeminiClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)

	claude, err := f.GetClaudeClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, claude)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(""))
	assert.Nil(t, newLimiter("0s"))
	assert.NotNil(t, newLimiter("2s"))

	cfg := defaultTestConfig()
	cfg.Gemini.RateLimit = "1s"
	f := newTestFactory(cfg)
	assert.NotNil(t, f.limiters[ProviderGemini])
	assert.Nil(t, f.limiters[ProviderClaude])
}

func TestConvertMessages(t *testing.T) {
	msgs := []interfaces.Message{
		{Role: interfaces.RoleSystem, Content: "be brief"},
		{Role: interfaces.RoleUser, Content: "hello"},
		{Role: interfaces.RoleAssistant, Content: "hi"},
	}

	contents, system := convertMessagesToGemini(msgs)
	assert.Equal(t, "be brief", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleModel, string(contents[1].Role))

	params, system := convertMessagesToClaude(msgs)
	assert.Equal(t, "be brief", system)
	assert.Len(t, params, 2)
}
