// Package audits runs audit generation jobs and owns the lifecycle of their
// records: submission, progress writes, terminal writes and cancellation.
package audits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/common"
	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/metrics"
	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/services/generator"
)

// Job statuses recorded in metrics
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Messages written to records the job could not finish itself
const (
	CancelledMessage = "Audit generation was cancelled."
	StaleMessage     = "Audit generation did not finish. Please submit the business again."
	CrashedMessage   = "Audit generation failed unexpectedly. Please submit the business again."
)

// ErrJobNotRunning is returned by Cancel when no job is in flight for the id
var ErrJobNotRunning = errors.New("no running job for audit")

// ReportGenerator produces a validated report, reporting progress fractions
// while it does. *generator.Generator satisfies it.
type ReportGenerator interface {
	Generate(ctx context.Context, req models.AuditRequest, progress generator.ProgressFunc) (json.RawMessage, error)
}

// Service submits audits and runs their generation jobs
type Service struct {
	storage   interfaces.AuditStorage
	events    interfaces.EventService
	generator ReportGenerator
	logger    arbor.ILogger
	metrics   *metrics.Metrics
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup

	cron *cron.Cron
}

// NewService creates the audit service. Jobs run until they finish, are
// cancelled, or the service is closed.
func NewService(storage interfaces.AuditStorage, events interfaces.EventService, gen ReportGenerator, logger arbor.ILogger, m *metrics.Metrics) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		storage:   storage,
		events:    events,
		generator: gen,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[string]context.CancelFunc),
	}
}

// Submit validates req, stores a new record at progress 0 and starts its
// generation job in the background. The stored record is returned at once.
func (s *Service) Submit(ctx context.Context, req models.AuditRequest) (*models.AuditRecord, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record := models.NewAuditRecord(common.NewAuditID(), req, s.now())
	if err := s.storage.CreateAudit(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store audit: %w", err)
	}

	s.logger.Info().
		Str("audit_id", record.ID).
		Str("business", record.BusinessName).
		Str("domain", record.BusinessDomain).
		Msg("Audit submitted")

	s.publish(interfaces.EventAuditCreated, record)
	s.start(record)

	return record, nil
}

// Get returns the current record
func (s *Service) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	return s.storage.GetAudit(ctx, id)
}

// List returns records newest first
func (s *Service) List(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	return s.storage.ListAudits(ctx, limit)
}

// Delete cancels any running job for the record and removes it
func (s *Service) Delete(ctx context.Context, id string) error {
	s.stopJob(id)
	if err := s.storage.DeleteAudit(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("audit_id", id).Msg("Audit deleted")
	s.publish(interfaces.EventAuditDeleted, id)
	return nil
}

// Cancel stops the running job for id. The job writes the record as failed.
func (s *Service) Cancel(id string) error {
	if !s.stopJob(id) {
		return ErrJobNotRunning
	}
	s.logger.Info().Str("audit_id", id).Msg("Audit job cancellation requested")
	return nil
}

// IsRunning reports whether a job is in flight for id
func (s *Service) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

// RunningIDs returns the ids of jobs in flight
func (s *Service) RunningIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until every running job has returned or ctx is done
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the reaper, cancels running jobs and waits for them to write
// their terminal state
func (s *Service) Close() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if ids := s.RunningIDs(); len(ids) > 0 {
		s.logger.Info().Int("count", len(ids)).Msg("Cancelling running audit jobs")
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Some audit jobs did not stop within timeout")
		return err
	}
	return nil
}

func (s *Service) start(record *models.AuditRecord) {
	ctx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	s.running[record.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	name := "auditJob:" + record.ID
	common.SafeGo(s.logger, name, func() {
		defer s.wg.Done()
		defer s.release(record.ID)
		defer common.Recover(s.logger, name, func(any) {
			s.write(context.WithoutCancel(ctx), record.ID, models.FailedUpdate(CrashedMessage))
			s.metrics.JobFinished(StatusFailed)
		})
		s.runJob(ctx, record)
	})
}

func (s *Service) stopJob(id string) bool {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Service) release(id string) {
	s.mu.Lock()
	cancel, ok := s.running[id]
	delete(s.running, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// runJob generates the report and writes the outcome. Store writes use a
// context detached from cancellation so a cancelled job still records failure.
func (s *Service) runJob(ctx context.Context, record *models.AuditRecord) {
	id := record.ID
	writeCtx := context.WithoutCancel(ctx)
	started := s.now()

	s.metrics.JobStarted()
	s.logger.Debug().Str("audit_id", id).Msg("Audit job started")

	report, err := s.generator.Generate(ctx, record.Request(), func(fraction float64) {
		s.write(writeCtx, id, models.ProgressUpdate(progressPercent(fraction)))
	})

	switch {
	case err == nil:
		s.write(writeCtx, id, models.CompletedUpdate(report))
		s.metrics.JobFinished(StatusCompleted)
		s.logger.Info().
			Str("audit_id", id).
			Dur("duration", s.now().Sub(started)).
			Msg("Audit job completed")

	case ctx.Err() != nil:
		s.write(writeCtx, id, models.FailedUpdate(CancelledMessage))
		s.metrics.JobFinished(StatusCancelled)
		s.logger.Warn().Str("audit_id", id).Msg("Audit job cancelled")

	default:
		s.write(writeCtx, id, models.FailedUpdate(err.Error()))
		s.metrics.JobFinished(StatusFailed)
		s.logger.Error().
			Err(err).
			Str("audit_id", id).
			Dur("duration", s.now().Sub(started)).
			Msg("Audit job failed")
	}
}

// write applies an update and publishes the resulting record. Failures are
// logged; the job carries on.
func (s *Service) write(ctx context.Context, id string, update models.AuditUpdate) {
	record, err := s.storage.UpdateAudit(ctx, id, update)
	if err != nil {
		s.logger.Warn().Err(err).Str("audit_id", id).Msg("Failed to update audit record")
		return
	}
	s.publish(interfaces.EventAuditUpdated, record)
}

// publish waits for subscribers so they observe record states in write order
func (s *Service) publish(eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	err := s.events.PublishSync(context.Background(), interfaces.Event{Type: eventType, Payload: payload})
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Event subscriber failed")
	}
}

func progressPercent(fraction float64) int {
	p := int(math.Round(fraction * 100))
	if p < 0 {
		return 0
	}
	if p > models.ProgressCompleted {
		return models.ProgressCompleted
	}
	return p
}
