package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ternarybob/bizaudit/internal/interfaces"
)

// generateWithClaude generates content using the Claude API. No retries are made here.
func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetClaudeClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.config.Claude.Model
	}

	messages, systemText := convertMessagesToClaude(request.Messages)
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.config.Claude.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(float64(request.Temperature)),
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyCallError(ProviderClaude, err)
	}

	text, err := claudeResponseText(resp)
	if err != nil {
		return nil, err
	}

	return &ContentResponse{
		Text:     text,
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}

// claudeResponseText joins the text blocks of a message, turning a refusal stop reason into a RefusalError
func claudeResponseText(resp *anthropic.Message) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%s: %w", ProviderClaude, ErrEmptyResponse)
	}

	if resp.StopReason == anthropic.StopReasonRefusal {
		return "", &RefusalError{Provider: ProviderClaude, Reason: ReasonRefusal}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("%s: %w", ProviderClaude, ErrEmptyResponse)
	}
	return text.String(), nil
}

// convertMessagesToClaude maps chat messages to Claude params. System
// messages are folded into the returned system text.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string) {
	var out []anthropic.MessageParam
	var systemText string

	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText != "" {
				systemText += "\n\n"
			}
			systemText += msg.Content
		case interfaces.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return out, systemText
}
