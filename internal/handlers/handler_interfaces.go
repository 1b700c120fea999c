package handlers

import (
	"context"

	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/services/viewer"
)

// AuditService defines the record and job operations the audit endpoints need.
// *audits.Service satisfies it.
type AuditService interface {
	Submit(ctx context.Context, req models.AuditRequest) (*models.AuditRecord, error)
	Get(ctx context.Context, id string) (*models.AuditRecord, error)
	List(ctx context.Context, limit int) ([]*models.AuditRecord, error)
	Delete(ctx context.Context, id string) error
	Cancel(id string) error
}

// ViewWatcher defines the viewer state feed. *viewer.Watcher satisfies it.
type ViewWatcher interface {
	Watch(ctx context.Context, id string) (<-chan viewer.View, error)
	Await(ctx context.Context, id string) (viewer.View, error)
}

// FactsSource defines the loader facts generator.
type FactsSource interface {
	Generate(ctx context.Context, req models.AuditRequest) ([]string, error)
}
