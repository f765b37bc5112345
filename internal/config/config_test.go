package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv hides any planner settings of the environment running the tests
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_PORT", "LOG_LEVEL", "GTFS_PATH", "METRICS_ADDR", "USE_CACHE", "PLANNER_CONFIG",
		"WALK_SPEED", "MAX_WALK_DISTANCE", "SEARCH_WINDOW", "SEARCH_TIMEOUT",
		"BOARD_SLACK", "ALIGHT_SLACK", "TRANSFER_SLACK",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1.4, cfg.Planner.WalkSpeed)
	assert.Equal(t, 180, cfg.Planner.Slack.Transfer)
	assert.Equal(t, 10*time.Second, cfg.Planner.Timeout)
	assert.Equal(t, 600, cfg.Planner.Costs.BoardCost)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("WALK_SPEED", "1.2")
	t.Setenv("BOARD_SLACK", "30")
	t.Setenv("SEARCH_WINDOW", "3600")
	t.Setenv("SEARCH_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 1.2, cfg.Planner.WalkSpeed)
	assert.Equal(t, 30, cfg.Planner.Slack.Board)
	assert.Equal(t, 3600, cfg.Planner.SearchWindow)
	assert.Equal(t, 2*time.Second, cfg.Planner.Timeout)
}

func TestLoadPlannerFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
planner:
  walkSpeed: 1.1
  slack:
    alight: 15
    transfer: 60
  costs:
    boardCost: 300
    transitReluctance: 1.2
`), 0o644))
	t.Setenv("PLANNER_CONFIG", path)
	t.Setenv("TRANSFER_SLACK", "90")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1.1, cfg.Planner.WalkSpeed)
	assert.Equal(t, 15, cfg.Planner.Slack.Alight)
	assert.Equal(t, 60, cfg.Planner.Slack.Transfer)
	assert.Equal(t, 300, cfg.Planner.Costs.BoardCost)
	assert.Equal(t, 1.2, cfg.Planner.Costs.TransitReluctance)
	// Fields absent from the file keep their defaults
	assert.Equal(t, 500.0, cfg.Planner.MaxWalkDistance)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad walk speed", "WALK_SPEED", "fast"},
		{"negative walk speed", "WALK_SPEED", "-1"},
		{"bad slack", "BOARD_SLACK", "1m"},
		{"negative slack", "TRANSFER_SLACK", "-5"},
		{"bad timeout", "SEARCH_TIMEOUT", "10"},
		{"bad port", "API_PORT", "http"},
		{"bad log level", "LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PLANNER_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}
