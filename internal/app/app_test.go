package app

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/model"
	configview "github.com/nhle/mailbot/internal/ui/config"
)

func TestFormatCounts(t *testing.T) {
	assert.Empty(t, formatCounts(nil))
	assert.Equal(t, "decided 4, failed 1, rejected 2", formatCounts(map[string]int{
		"rejected": 2,
		"decided":  4,
		"failed":   1,
	}))
}

func newSetupModel(t *testing.T) Model {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	view := configview.New(cfg, filepath.Join(t.TempDir(), "config.yaml"), keys.DefaultKeyMap(), zerolog.Nop(), 80, 24)
	return NewSetup(view)
}

func TestExecuteCommand(t *testing.T) {
	m := newSetupModel(t)

	assert.Nil(t, m.executeCommand("poll"), "no poller in setup mode")

	m.executeCommand("rules")
	assert.Equal(t, ViewRules, m.currentView)

	m.executeCommand("Setup")
	assert.Equal(t, ViewConfig, m.currentView)

	m.executeCommand("frobnicate")
	assert.Equal(t, `Unknown command "frobnicate"`, m.statusMessage)

	assert.NotNil(t, m.executeCommand("quit"))
}

func TestSyncStatusWithoutPoller(t *testing.T) {
	m := newSetupModel(t)
	assert.Equal(t, "not configured", m.syncStatus())
}
