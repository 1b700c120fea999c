package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRateLimited marks a transient provider quota rejection
var ErrRateLimited = errors.New("provider rate limited")

// ErrProviderUnavailable marks any other failed provider call
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrEmptyResponse marks a completion that carried no text
var ErrEmptyResponse = errors.New("empty response from provider")

// Refusal reasons. The reason is carried verbatim in RefusalError messages so
// callers can match on it.
const (
	ReasonRecitation        = "RECITATION"
	ReasonSafety            = "SAFETY"
	ReasonProhibitedContent = "PROHIBITED_CONTENT"
	ReasonBlocklist         = "BLOCKLIST"
	ReasonSPII              = "SPII"
	ReasonRefusal           = "REFUSAL"
)

// RefusalError is a content-policy refusal by the provider
type RefusalError struct {
	Provider ProviderType
	Reason   string
	Detail   string
}

func (e *RefusalError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s refused generation (%s): %s", e.Provider, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s refused generation (%s)", e.Provider, e.Reason)
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes, RESOURCE_EXHAUSTED and quota messages.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(strings.ToLower(errStr), "quota")
}

// classifyCallError wraps a raw SDK error so callers can use errors.Is
func classifyCallError(provider ProviderType, err error) error {
	if IsRateLimitError(err) {
		return fmt.Errorf("%s: %w: %v", provider, ErrRateLimited, err)
	}
	return fmt.Errorf("%s API call failed: %w: %w", provider, ErrProviderUnavailable, err)
}

// outcomeLabel maps an error to a metrics label
func outcomeLabel(err error) string {
	var refusal *RefusalError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &refusal):
		return "refused"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}
