package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/bizaudit/internal/models"
)

// ErrAuditNotFound is returned when no audit record exists for an id
var ErrAuditNotFound = errors.New("audit not found")

// ErrAuditSettled is returned when a conditional update finds the record
// already completed or failed
var ErrAuditSettled = errors.New("audit already settled")

// AuditStorage is the record store for audit generations
type AuditStorage interface {
	// CreateAudit stores a new record. The record must carry an ID.
	CreateAudit(ctx context.Context, record *models.AuditRecord) error

	// GetAudit returns the current record, or ErrAuditNotFound
	GetAudit(ctx context.Context, id string) (*models.AuditRecord, error)

	// ListAudits returns records newest first. limit <= 0 returns all.
	ListAudits(ctx context.Context, limit int) ([]*models.AuditRecord, error)

	// ListUnfinished returns records still generating (0 <= progress < 100,
	// no report) whose last update is older than updatedBefore
	ListUnfinished(ctx context.Context, updatedBefore time.Time) ([]*models.AuditRecord, error)

	// UpdateAudit applies a partial update atomically and returns the updated record.
	// Fields not set on the update are left untouched. An update with
	// UnlessSettled set returns ErrAuditSettled for a terminal record.
	UpdateAudit(ctx context.Context, id string, update models.AuditUpdate) (*models.AuditRecord, error)

	// DeleteAudit removes a record, or returns ErrAuditNotFound
	DeleteAudit(ctx context.Context, id string) error
}
