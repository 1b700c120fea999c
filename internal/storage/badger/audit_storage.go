package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/models"
)

// maxConflictRetries bounds retries of an update that lost a write conflict
const maxConflictRetries = 5

// AuditStorage implements interfaces.AuditStorage for Badger
type AuditStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewAuditStorage creates a new AuditStorage instance
func NewAuditStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuditStorage {
	return &AuditStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// CreateAudit stores a new record
func (s *AuditStorage) CreateAudit(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		return fmt.Errorf("audit ID is required")
	}
	if err := s.db.Store().Insert(record.ID, record); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("audit %s already exists: %w", record.ID, err)
		}
		return fmt.Errorf("failed to create audit: %w", err)
	}
	return nil
}

// GetAudit retrieves a record by id
func (s *AuditStorage) GetAudit(ctx context.Context, id string) (*models.AuditRecord, error) {
	var record models.AuditRecord
	err := s.db.Store().Get(id, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrAuditNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	return &record, nil
}

// ListAudits returns records ordered by CreatedAt DESC
func (s *AuditStorage) ListAudits(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.AuditRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	return toPointers(records), nil
}

// ListUnfinished returns in-flight records last touched before updatedBefore
func (s *AuditStorage) ListUnfinished(ctx context.Context, updatedBefore time.Time) ([]*models.AuditRecord, error) {
	query := badgerhold.Where("Progress").Ge(models.ProgressStarted).
		And("Progress").Lt(models.ProgressCompleted).
		And("UpdatedAt").Lt(updatedBefore)

	var records []models.AuditRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list unfinished audits: %w", err)
	}

	unfinished := make([]*models.AuditRecord, 0, len(records))
	for _, r := range toPointers(records) {
		if !r.HasReport() {
			unfinished = append(unfinished, r)
		}
	}
	return unfinished, nil
}

// UpdateAudit reads, merges and writes the record in one transaction
func (s *AuditStorage) UpdateAudit(ctx context.Context, id string, update models.AuditUpdate) (*models.AuditRecord, error) {
	store := s.db.Store()
	var record models.AuditRecord

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = store.Badger().Update(func(tx *badgerdb.Txn) error {
			record = models.AuditRecord{}
			if err := store.TxGet(tx, id, &record); err != nil {
				return err
			}
			if update.UnlessSettled && record.IsTerminal() {
				return interfaces.ErrAuditSettled
			}
			update.Apply(&record, s.now())
			return store.TxUpsert(tx, id, &record)
		})
		if !errors.Is(err, badgerdb.ErrConflict) {
			break
		}
		s.logger.Debug().Str("audit_id", id).Int("attempt", attempt+1).Msg("Audit update conflicted, retrying")
	}
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrAuditNotFound
	}
	if errors.Is(err, interfaces.ErrAuditSettled) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update audit %s: %w", id, err)
	}

	return &record, nil
}

// DeleteAudit removes a record
func (s *AuditStorage) DeleteAudit(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.AuditRecord{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrAuditNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete audit: %w", err)
	}
	return nil
}

func toPointers(records []models.AuditRecord) []*models.AuditRecord {
	out := make([]*models.AuditRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}
