package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Progress sentinels stored on an AuditRecord
const (
	ProgressStarted   = 0
	ProgressCompleted = 100
	ProgressFailed    = -1
)

// AuditRequest is the business profile supplied by the user. All four fields are required.
type AuditRequest struct {
	BusinessName     string `json:"businessName" validate:"required,max=200"`
	BusinessDomain   string `json:"businessDomain" validate:"required,max=100"`
	BusinessLocation string `json:"businessLocation" validate:"required,max=200"`
	Description      string `json:"description" validate:"required,max=5000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidRequest wraps every AuditRequest validation failure
var ErrInvalidRequest = errors.New("invalid audit request")

// Normalize trims surrounding whitespace from every field
func (r AuditRequest) Normalize() AuditRequest {
	return AuditRequest{
		BusinessName:     strings.TrimSpace(r.BusinessName),
		BusinessDomain:   strings.TrimSpace(r.BusinessDomain),
		BusinessLocation: strings.TrimSpace(r.BusinessLocation),
		Description:      strings.TrimSpace(r.Description),
	}
}

// Validate checks the request with go-playground/validator. The returned
// error wraps ErrInvalidRequest and names the offending json fields.
func (r AuditRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s is %s", jsonFieldName(fe.Field()), describeTag(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, ", "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "longer than " + fe.Param() + " characters"
	default:
		return "invalid (" + fe.Tag() + ")"
	}
}

// jsonFieldName lower-cases the first letter of a Go field name
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// AuditRecord is the persisted, observable state of one audit generation.
//
// Progress is 0 at creation, 1..100 while generating, 100 with a Report on
// success and -1 with an Error on failure. Report is the raw validated JSON
// object returned by the model, nil until the job succeeds.
type AuditRecord struct {
	ID string `json:"id"`

	BusinessName     string `json:"businessName"`
	BusinessDomain   string `json:"businessDomain" badgerhold:"index"`
	BusinessLocation string `json:"businessLocation"`
	Description      string `json:"description"`

	Progress int             `json:"progress"`
	Report   json.RawMessage `json:"generatedAudit"`
	Error    string          `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewAuditRecord builds the initial record for a request
func NewAuditRecord(id string, req AuditRequest, now time.Time) *AuditRecord {
	return &AuditRecord{
		ID:               id,
		BusinessName:     req.BusinessName,
		BusinessDomain:   req.BusinessDomain,
		BusinessLocation: req.BusinessLocation,
		Description:      req.Description,
		Progress:         ProgressStarted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Request returns the business profile the record was created from
func (r *AuditRecord) Request() AuditRequest {
	return AuditRequest{
		BusinessName:     r.BusinessName,
		BusinessDomain:   r.BusinessDomain,
		BusinessLocation: r.BusinessLocation,
		Description:      r.Description,
	}
}

// HasReport reports whether a generated report is stored
func (r *AuditRecord) HasReport() bool {
	return len(r.Report) > 0 && string(r.Report) != "null"
}

// IsFailed reports whether the job wrote the failure sentinel
func (r *AuditRecord) IsFailed() bool {
	return r.Progress == ProgressFailed
}

// IsTerminal reports whether no further job writes are expected
func (r *AuditRecord) IsTerminal() bool {
	return r.IsFailed() || r.HasReport()
}

// DecodeReport decodes the stored report into its typed form
func (r *AuditRecord) DecodeReport() (*AuditReport, error) {
	if !r.HasReport() {
		return nil, fmt.Errorf("audit %s has no report", r.ID)
	}
	var report AuditReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report for audit %s: %w", r.ID, err)
	}
	return &report, nil
}

// AuditUpdate is a partial update. Nil fields are left untouched.
type AuditUpdate struct {
	Progress *int
	Report   json.RawMessage
	Error    *string

	// UnlessSettled makes the update a no-op on a terminal record
	UnlessSettled bool
}

// ProgressUpdate sets only the progress field
func ProgressUpdate(progress int) AuditUpdate {
	return AuditUpdate{Progress: &progress}
}

// CompletedUpdate writes the terminal success state
func CompletedUpdate(report json.RawMessage) AuditUpdate {
	progress := ProgressCompleted
	return AuditUpdate{Progress: &progress, Report: report}
}

// FailedUpdate writes the terminal failure state
func FailedUpdate(message string) AuditUpdate {
	progress := ProgressFailed
	return AuditUpdate{Progress: &progress, Error: &message}
}

// StaleUpdate fails a record only if it is still generating when written
func StaleUpdate(message string) AuditUpdate {
	u := FailedUpdate(message)
	u.UnlessSettled = true
	return u
}

// Apply merges the update into the record
func (u AuditUpdate) Apply(r *AuditRecord, now time.Time) {
	if u.Progress != nil {
		r.Progress = *u.Progress
	}
	if u.Report != nil {
		r.Report = u.Report
	}
	if u.Error != nil {
		r.Error = *u.Error
	}
	r.UpdatedAt = now
}
