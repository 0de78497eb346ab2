package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radclock.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadParsesRecognizedKeys(t *testing.T) {
	path := writeConfig(t, `version = 1.0.0
verbose_level = high
synchronization_type = ntp
polling_period = 32
temperature_quality = excellent
hostname = box1
time_server = ntp1.example.com
time_server = ntp2.example.com
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, VerboseHigh, cfg.VerboseLevel)
	require.Equal(t, SyncNTP, cfg.SyncType)
	require.Equal(t, 32*time.Second, cfg.PollingPeriod)
	require.Equal(t, TempExcellent, cfg.TemperatureQuality)
	require.Equal(t, "box1", cfg.Hostname)
	require.Equal(t, []string{"ntp1.example.com", "ntp2.example.com"}, cfg.TimeServers)
}

func TestLoadFallsBackOnInvalidEnum(t *testing.T) {
	path := writeConfig(t, "verbose_level = deafening\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, VerboseNormal, cfg.VerboseLevel)
}

func TestLoadFallsBackOnOutOfRangePollingPeriod(t *testing.T) {
	path := writeConfig(t, "polling_period = 9000\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 16*time.Second, cfg.PollingPeriod)
}

func TestLoadRewritesOnVersionMismatch(t *testing.T) {
	path := writeConfig(t, "version = 0.1.0\nhostname = keep-me\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, cfg.Version)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, reloaded.Version)
	require.Equal(t, "keep-me", reloaded.Hostname)
}

func TestSaveRoundTripsServerTrust(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radclock.conf")
	cfg := Default()
	cfg.ServerTrust = map[string]bool{"server-a": true}
	require.NoError(t, Save(cfg, path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, reloaded.ServerTrust["server-a"])
}

func TestAlgoParamsAppliesTemperaturePreset(t *testing.T) {
	cfg := Default()
	cfg.TemperatureQuality = TempPoor
	good := Default().AlgoParams()
	poor := cfg.AlgoParams()
	require.Greater(t, poor.TSLIMIT, good.TSLIMIT)
}

func TestApplyOverridesPrefersCLI(t *testing.T) {
	cfg := Default()
	cfg.Hostname = "from-file"
	ApplyOverrides(cfg, Overrides{Hostname: "from-cli", PollingPeriod: 8 * time.Second})
	require.Equal(t, "from-cli", cfg.Hostname)
	require.Equal(t, 8*time.Second, cfg.PollingPeriod)
}

func TestLoadParsesMetricsPort(t *testing.T) {
	path := writeConfig(t, "metrics_port = 9200\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.MetricsPort)
}

func TestSaveRoundTripsMetricsPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radclock.conf")
	cfg := Default()
	cfg.MetricsPort = 9201
	require.NoError(t, Save(cfg, path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9201, reloaded.MetricsPort)
}

func TestHashDiffersOnContentChange(t *testing.T) {
	h1 := Hash([]byte("a=1\n"))
	h2 := Hash([]byte("a=2\n"))
	require.NotEqual(t, h1, h2)
}
