package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/models"
)

// Watcher streams viewer states for audit records
type Watcher struct {
	storage interfaces.AuditStorage
	events  interfaces.EventService
	timeout time.Duration
	logger  arbor.ILogger
}

// NewWatcher creates a watcher. timeout bounds how long a viewer waits for a
// result before showing the no data failure.
func NewWatcher(storage interfaces.AuditStorage, events interfaces.EventService, timeout time.Duration, logger arbor.ILogger) *Watcher {
	return &Watcher{
		storage: storage,
		events:  events,
		timeout: timeout,
		logger:  logger,
	}
}

// Timeout returns the configured viewer timeout
func (w *Watcher) Timeout() time.Duration {
	return w.timeout
}

// latest holds the newest record pushed by the event bus
type latest struct {
	mu      sync.Mutex
	record  *models.AuditRecord
	deleted bool
	notify  chan struct{}
}

func (l *latest) set(record *models.AuditRecord, deleted bool) {
	l.mu.Lock()
	if record != nil {
		if l.record == nil || !record.UpdatedAt.Before(l.record.UpdatedAt) {
			l.record = record
		}
	}
	l.deleted = l.deleted || deleted
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latest) take() (*models.AuditRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.record
	l.record = nil
	return r, l.deleted
}

// Watch emits the viewer state for id: first from a snapshot, then on every
// change. The channel closes after ReportReady, deletion, or when ctx is done.
// ErrAuditNotFound is returned when the record does not exist.
func (w *Watcher) Watch(ctx context.Context, id string) (<-chan View, error) {
	pending := &latest{notify: make(chan struct{}, 1)}

	// Subscribe before the snapshot so no write falls in between
	unsubUpdated, err := w.events.Subscribe(interfaces.EventAuditUpdated, func(_ context.Context, e interfaces.Event) error {
		if record, ok := e.Payload.(*models.AuditRecord); ok && record.ID == id {
			pending.set(record, false)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to audit updates: %w", err)
	}
	unsubDeleted, err := w.events.Subscribe(interfaces.EventAuditDeleted, func(_ context.Context, e interfaces.Event) error {
		if deletedID, ok := e.Payload.(string); ok && deletedID == id {
			pending.set(nil, true)
		}
		return nil
	})
	if err != nil {
		unsubUpdated()
		return nil, fmt.Errorf("failed to subscribe to audit deletions: %w", err)
	}

	snapshot, err := w.storage.GetAudit(ctx, id)
	if err != nil {
		unsubUpdated()
		unsubDeleted()
		return nil, err
	}

	out := make(chan View, 4)
	go func() {
		defer close(out)
		defer unsubDeleted()
		defer unsubUpdated()
		w.run(ctx, snapshot, pending, out)
	}()
	return out, nil
}

func (w *Watcher) run(ctx context.Context, snapshot *models.AuditRecord, pending *latest, out chan<- View) {
	machine := NewMachine(snapshot)
	lastSeen := snapshot.UpdatedAt

	emit := func(v View) bool {
		select {
		case out <- v:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(machine.View()) || machine.View().State == StateReportReady {
		return
	}

	var expired <-chan time.Time
	if machine.View().State == StateAwaitingResult && w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-expired:
			expired = nil
			if v, changed := machine.Expire(); changed {
				w.logger.Debug().Str("audit_id", snapshot.ID).Dur("timeout", w.timeout).Msg("Viewer timed out waiting for a result")
				if !emit(v) {
					return
				}
			}

		case <-pending.notify:
			record, deleted := pending.take()
			if deleted {
				if v, changed := machine.Deleted(); changed {
					emit(v)
				}
				return
			}
			// Events are published after the write, so an older snapshot
			// than one already applied is stale
			if record == nil || record.UpdatedAt.Before(lastSeen) {
				continue
			}
			lastSeen = record.UpdatedAt

			v, changed := machine.Observe(record)
			if changed && !emit(v) {
				return
			}
			if v.State == StateReportReady {
				return
			}
		}
	}
}

// Await blocks until the view settles or the viewer timeout passes and
// returns the first settled view
func (w *Watcher) Await(ctx context.Context, id string) (View, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	views, err := w.Watch(ctx, id)
	if err != nil {
		return View{}, err
	}

	var last View
	for v := range views {
		last = v
		if v.Settled() {
			return v, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return last, err
	}
	return last, nil
}
