package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
watch:
  directory: /data/instruments
catalog:
  repository: repo/lab
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "curator", cfg.Service.Name)
	assert.Equal(t, ModeContinuous, cfg.Service.Mode)
	assert.Equal(t, 5*time.Second, cfg.Service.CycleInterval)
	assert.Equal(t, time.Second, cfg.Service.EntryDelay)
	assert.Equal(t, WatchFiles, cfg.Watch.Mode)
	assert.Contains(t, cfg.Watch.Exclude, "$RECYCLE.BIN")
	assert.Equal(t, "root", cfg.Catalog.Collection)
	assert.Equal(t, cfg.Ledger.Path+".lock", cfg.Ledger.LockPath)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadMissingWatchDirectory(t *testing.T) {
	_, err := Load(writeConfig(t, `
catalog:
  repository: repo/lab
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch.directory")
}

func TestLoadMissingRepository(t *testing.T) {
	_, err := Load(writeConfig(t, `
watch:
  directory: /data/instruments
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.repository")
}

func TestLoadEnvInterpolation(t *testing.T) {
	t.Setenv("CURATOR_TEST_DIR", "/mnt/scope1")

	cfg, err := Load(writeConfig(t, `
watch:
  directory: ${CURATOR_TEST_DIR}
catalog:
  repository: repo/lab
`))
	require.NoError(t, err)
	assert.Equal(t, "/mnt/scope1", cfg.Watch.Directory)
}

func TestLoadUnresolvedEnvVarFailsValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `
watch:
  directory: ${CURATOR_UNSET_DIR_VAR}
catalog:
  repository: repo/lab
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved environment variable")
}

func TestLoadPrefixRequiresDirectoryMode(t *testing.T) {
	_, err := Load(writeConfig(t, `
watch:
  directory: /data/instruments
  prefix: GC
catalog:
  repository: repo/lab
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch.prefix")
}

func TestLoadDailyMode(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
service:
  mode: daily
  daily_at: "02:30"
watch:
  directory: /data/instruments
catalog:
  repository: repo/lab
`))
	require.NoError(t, err)
	assert.Equal(t, ModeDaily, cfg.Service.Mode)
	assert.Equal(t, "02:30", cfg.Service.DailyAt)

	_, err = Load(writeConfig(t, `
service:
  mode: daily
  daily_at: "25:00"
watch:
  directory: /data/instruments
catalog:
  repository: repo/lab
`))
	require.Error(t, err)
}

func TestLoadAPIEnabledRequiresAuth(t *testing.T) {
	_, err := Load(writeConfig(t, `
watch:
  directory: /data/instruments
catalog:
  repository: repo/lab
api:
  enabled: true
  listen: 127.0.0.1:0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.auth")
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"7:05", 7, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestNextDailyRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	next := NextDailyRun(now, 12, 0)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), next)

	// Already past today: roll to tomorrow.
	next = NextDailyRun(now, 2, 30)
	assert.Equal(t, time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC), next)
}

func TestChecksumRoundTrip(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	_, err := WriteChecksum(path)
	require.NoError(t, err)
	require.NoError(t, VerifyChecksum(path))

	// Tamper and expect a mismatch.
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig+"\n# edited\n"), 0644))
	err = VerifyChecksum(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestVerifyChecksumMissingManifestIsOK(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	assert.NoError(t, VerifyChecksum(path))
}
