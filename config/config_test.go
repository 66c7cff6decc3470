package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/simbroker/internal/sim"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "sim", cfg.SimID)
	require.True(t, cfg.InitialCash.Equal(decimal.NewFromInt(100_000)))
	require.Equal(t, sim.LatencyZero, cfg.Latency.Profile().Label())
	require.False(t, cfg.Risk.Enabled())
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
simId: backtest-1
initialCash: 250000.50
slippageBps: 5
commissionPerShare: 0.01
latency:
  preset: retail
risk:
  maxShares: 100
  maxDailyPct: 2.5
  maxOrders: 10
  rateWindow: 1m
checkpoint:
  dir: /tmp/ckpt
  saveOnExit: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "backtest-1", cfg.SimID)
	require.True(t, cfg.InitialCash.Equal(decimal.RequireFromString("250000.50")))
	require.True(t, cfg.SlippageBps.Equal(decimal.NewFromInt(5)))
	require.Equal(t, sim.LatencyRetail, cfg.Latency.Profile().Label())
	require.Equal(t, "/tmp/ckpt", cfg.Checkpoint.Dir)
	require.False(t, cfg.Checkpoint.SaveOnExit)

	require.True(t, cfg.Risk.Enabled())
	rules := cfg.Risk.RuleConfig()
	require.True(t, rules.Position.MaxShares.Equal(decimal.NewFromInt(100)))
	require.True(t, rules.Drawdown.MaxDailyPct.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, 10, rules.Rate.MaxOrders)
	require.Equal(t, time.Minute, rules.Rate.Window)
}

func TestLoadCustomLatencyDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
latency:
  submission: 20ms
  fillMin: 10ms
  fillMax: 40ms
  cancel: 20ms
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	profile := cfg.Latency.Profile()
	require.Equal(t, "custom", profile.Label())
	require.Equal(t, 20*time.Millisecond, profile.Submission)
	require.Equal(t, 10*time.Millisecond, profile.FillMin)
	require.Equal(t, 40*time.Millisecond, profile.FillMax)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "neg.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("initialCash: -1\n"), 0o644))
	_, err := Load(bad)
	require.Error(t, err)

	preset := filepath.Join(dir, "preset.yaml")
	require.NoError(t, os.WriteFile(preset, []byte("latency:\n  preset: warp\n"), 0o644))
	_, err = Load(preset)
	require.Error(t, err)

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("initialCash: [1,2\n"), 0o644))
	_, err = Load(garbage)
	require.Error(t, err)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SIMBROKER_SIM_ID", "env-sim")
	t.Setenv("SIMBROKER_INITIAL_CASH", "5000")
	t.Setenv("SIMBROKER_LATENCY_PRESET", "colo")
	t.Setenv("SIMBROKER_CHECKPOINT_DIR", "/var/ckpt")

	cfg := FromEnv(Default())
	require.Equal(t, "env-sim", cfg.SimID)
	require.True(t, cfg.InitialCash.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, sim.LatencyColo, cfg.Latency.Profile().Label())
	require.Equal(t, "/var/ckpt", cfg.Checkpoint.Dir)
}
