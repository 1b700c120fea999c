package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ternarybob/bizaudit/internal/interfaces"
)

// refusalFinishReasons are candidate finish reasons that mean the model declined to answer
var refusalFinishReasons = map[genai.FinishReason]string{
	genai.FinishReasonRecitation:        ReasonRecitation,
	genai.FinishReasonSafety:            ReasonSafety,
	genai.FinishReasonProhibitedContent: ReasonProhibitedContent,
	genai.FinishReasonBlocklist:         ReasonBlocklist,
	genai.FinishReasonSPII:              ReasonSPII,
}

// generateWithGemini generates content using the Gemini API. No retries are made here.
func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.config.Gemini.Model
	}

	contents, systemText := convertMessagesToGemini(request.Messages)
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(request.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if request.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, classifyCallError(ProviderGemini, err)
	}

	text, err := geminiResponseText(resp)
	if err != nil {
		return nil, err
	}

	return &ContentResponse{
		Text:     text,
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

// geminiResponseText extracts the completion, turning blocked prompts and
// refusal finish reasons into a RefusalError
func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%s: %w", ProviderGemini, ErrEmptyResponse)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", &RefusalError{Provider: ProviderGemini, Reason: string(fb.BlockReason), Detail: fb.BlockReasonMessage}
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%s: %w", ProviderGemini, ErrEmptyResponse)
	}

	if reason, refused := refusalFinishReasons[resp.Candidates[0].FinishReason]; refused {
		return "", &RefusalError{Provider: ProviderGemini, Reason: reason, Detail: resp.Candidates[0].FinishMessage}
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%s: %w", ProviderGemini, ErrEmptyResponse)
	}
	return text, nil
}

// convertMessagesToGemini maps chat messages to genai contents. System
// messages are folded into the returned system instruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemText string

	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText != "" {
				systemText += "\n\n"
			}
			systemText += msg.Content
		case interfaces.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return contents, systemText
}
