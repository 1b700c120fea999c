package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/bizaudit/internal/schema"
)

// SchemaError is returned when well-formed output lacks required structure
type SchemaError = schema.SchemaError

// PolicyMarkers are the refusal reasons that identify a content-policy
// rejection in a provider error message
var PolicyMarkers = []string{"RECITATION", "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII", "REFUSAL"}

// ErrFactsUnavailable is returned for any loader facts failure
var ErrFactsUnavailable = errors.New("failed to generate loader information")

// ParseError is returned when model output is not well-formed JSON.
// Snippet holds the start of the offending text for logging.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model output is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ContentPolicyError is returned when every attempt failed and the last
// failure was a provider content-policy refusal
type ContentPolicyError struct {
	Attempts int
	Cause    error
}

func (e *ContentPolicyError) Error() string {
	return "The model could not produce an original response for this business. Please rephrase the description and try again."
}

func (e *ContentPolicyError) Unwrap() error {
	return e.Cause
}

// GenerationExhaustedError is returned when every attempt failed for any other reason
type GenerationExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("Failed to generate the audit after %d attempts. Please try again later.", e.Attempts)
}

func (e *GenerationExhaustedError) Unwrap() error {
	return e.Cause
}

// IsContentPolicyRefusal reports whether an error message carries a policy marker
func IsContentPolicyRefusal(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range PolicyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// attemptOutcome maps an attempt error to a metrics label
func attemptOutcome(err error) string {
	var parseErr *ParseError
	var schemaErr *SchemaError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &schemaErr):
		return "schema_error"
	case IsContentPolicyRefusal(err):
		return "refused"
	default:
		return "provider_error"
	}
}
