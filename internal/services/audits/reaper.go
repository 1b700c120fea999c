package audits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/models"
)

// StartReaper schedules ReapStale on a cron expression. Records left
// generating by a previous process are failed on the first run.
func (s *Service) StartReaper(schedule string, staleAfter time.Duration) error {
	if s.cron != nil {
		return fmt.Errorf("reaper already running")
	}
	if staleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive")
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.ReapStale(s.ctx, staleAfter); err != nil {
			s.logger.Warn().Err(err).Msg("Stale audit sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info().
		Str("schedule", schedule).
		Dur("stale_after", staleAfter).
		Msg("Stale audit reaper started")
	return nil
}

// ReapStale fails records that are still generating, have no live job in
// this process and were last updated more than staleAfter ago. It returns
// the number of records failed.
func (s *Service) ReapStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	records, err := s.storage.ListUnfinished(ctx, s.now().Add(-staleAfter))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, record := range records {
		if s.IsRunning(record.ID) {
			continue
		}
		failed, err := s.storage.UpdateAudit(ctx, record.ID, models.StaleUpdate(StaleMessage))
		if errors.Is(err, interfaces.ErrAuditSettled) || errors.Is(err, interfaces.ErrAuditNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("audit_id", record.ID).Msg("Failed to fail stale audit")
			continue
		}
		s.publish(interfaces.EventAuditUpdated, failed)
		s.metrics.JobReaped()
		reaped++
	}

	if reaped > 0 {
		s.logger.Info().Int("count", reaped).Msg("Failed stale audits")
	}
	return reaped, nil
}
