package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Templates.Dir = ""
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	a, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.StorageManager)
	assert.NotNil(t, a.EventService)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.Generator)
	assert.NotNil(t, a.FactsGenerator)
	assert.NotNil(t, a.AuditService)
	assert.NotNil(t, a.Watcher)
	assert.NotNil(t, a.APIHandler)
	assert.NotNil(t, a.AuditHandler)
	assert.NotNil(t, a.WSHandler)
	assert.Equal(t, a.Config.Viewer.TimeoutDuration(), a.Watcher.Timeout())
}

func TestNew_InvalidReaperSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.ReaperSchedule = "every tuesday"

	_, err := New(cfg, arbor.NewLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reaper")
}
