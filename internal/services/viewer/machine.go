// Package viewer derives what an audit viewer should display from the
// record store: a loader while the report is generating, the report once
// present, or a failure.
package viewer

import (
	"github.com/ternarybob/bizaudit/internal/models"
)

// State is the viewer display state
type State string

const (
	StateAwaitingResult State = "awaiting_result"
	StateReportReady    State = "report_ready"
	StateFailed         State = "failed"
)

// Messages shown in the failed state
const (
	NoDataMessage        = "No data available for this audit."
	GenerationFailedText = "The audit could not be generated."
	DeletedMessage       = "This audit has been deleted."
)

// View is one renderable viewer state
type View struct {
	State    State               `json:"state"`
	Progress int                 `json:"progress"`
	Message  string              `json:"message,omitempty"`
	Record   *models.AuditRecord `json:"record,omitempty"`
}

// Settled reports whether the view is no longer a loader
func (v View) Settled() bool {
	return v.State != StateAwaitingResult
}

// Machine tracks the viewer state for one record. ReportReady is absorbing;
// Failed moves to ReportReady if a report later arrives.
type Machine struct {
	view View
}

// NewMachine starts in ReportReady when the record already has a report and
// otherwise applies the record as the first observation
func NewMachine(record *models.AuditRecord) *Machine {
	m := &Machine{view: View{State: StateAwaitingResult}}
	if record != nil {
		m.Observe(record)
	}
	return m
}

// View returns the current state
func (m *Machine) View() View {
	return m.view
}

// Observe applies a record snapshot. It returns the resulting view and
// whether it differs from the previous one.
func (m *Machine) Observe(record *models.AuditRecord) (View, bool) {
	if record == nil || m.view.State == StateReportReady {
		return m.view, false
	}

	prev := m.view
	switch {
	case record.HasReport():
		m.view = View{State: StateReportReady, Progress: models.ProgressCompleted, Record: record}

	case record.IsFailed():
		msg := record.Error
		if msg == "" {
			msg = GenerationFailedText
		}
		m.view = View{State: StateFailed, Progress: models.ProgressFailed, Message: msg, Record: record}

	case m.view.State == StateFailed:
		// Progress without a report does not revive a failed view
		return m.view, false

	default:
		m.view = View{State: StateAwaitingResult, Progress: record.Progress, Record: record}
	}

	return m.view, m.view.State != prev.State || m.view.Progress != prev.Progress || m.view.Message != prev.Message
}

// Expire is called when the viewer timeout fires. Without a result it moves
// to Failed with the no data message.
func (m *Machine) Expire() (View, bool) {
	if m.view.State != StateAwaitingResult {
		return m.view, false
	}
	m.view = View{State: StateFailed, Progress: m.view.Progress, Message: NoDataMessage, Record: m.view.Record}
	return m.view, true
}

// Deleted moves any unsettled view to Failed
func (m *Machine) Deleted() (View, bool) {
	if m.view.State == StateReportReady {
		return m.view, false
	}
	m.view = View{State: StateFailed, Progress: models.ProgressFailed, Message: DeletedMessage}
	return m.view, true
}
