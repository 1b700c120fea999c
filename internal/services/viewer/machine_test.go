package viewer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/bizaudit/internal/models"
)

func record(progress int) *models.AuditRecord {
	r := models.NewAuditRecord("audit_1", models.AuditRequest{BusinessName: "Acme Bakery"}, time.Now())
	r.Progress = progress
	return r
}

func withReport(r *models.AuditRecord) *models.AuditRecord {
	r.Progress = models.ProgressCompleted
	r.Report = json.RawMessage(`{"sources":[]}`)
	return r
}

func TestMachineInitialState(t *testing.T) {
	assert.Equal(t, StateAwaitingResult, NewMachine(record(0)).View().State)
	assert.Equal(t, StateReportReady, NewMachine(withReport(record(0))).View().State)
	assert.Equal(t, StateAwaitingResult, NewMachine(nil).View().State)

	failed := record(models.ProgressFailed)
	failed.Error = "boom"
	v := NewMachine(failed).View()
	assert.Equal(t, StateFailed, v.State)
	assert.Equal(t, "boom", v.Message)
}

func TestMachineProgressThenReport(t *testing.T) {
	m := NewMachine(record(0))

	v, changed := m.Observe(record(43))
	assert.True(t, changed)
	assert.Equal(t, StateAwaitingResult, v.State)
	assert.Equal(t, 43, v.Progress)

	_, changed = m.Observe(record(43))
	assert.False(t, changed)

	v, changed = m.Observe(withReport(record(0)))
	assert.True(t, changed)
	assert.Equal(t, StateReportReady, v.State)
}

func TestMachineReportReadyIsAbsorbing(t *testing.T) {
	m := NewMachine(withReport(record(0)))

	v, changed := m.Observe(record(models.ProgressFailed))
	assert.False(t, changed)
	assert.Equal(t, StateReportReady, v.State)

	v, changed = m.Expire()
	assert.False(t, changed)
	assert.Equal(t, StateReportReady, v.State)

	_, changed = m.Deleted()
	assert.False(t, changed)
}

func TestMachineFailureFromRecord(t *testing.T) {
	m := NewMachine(record(20))
	failed := record(models.ProgressFailed)

	v, changed := m.Observe(failed)
	assert.True(t, changed)
	assert.Equal(t, StateFailed, v.State)
	assert.Equal(t, GenerationFailedText, v.Message)
}

func TestMachineExpire(t *testing.T) {
	m := NewMachine(record(0))

	v, changed := m.Expire()
	assert.True(t, changed)
	assert.Equal(t, StateFailed, v.State)
	assert.Equal(t, NoDataMessage, v.Message)

	// Progress does not revive a failed view, a report does
	_, changed = m.Observe(record(60))
	assert.False(t, changed)
	assert.Equal(t, StateFailed, m.View().State)

	v, changed = m.Observe(withReport(record(0)))
	assert.True(t, changed)
	assert.Equal(t, StateReportReady, v.State)
}
