package probe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
barrier:
  parties: 8
  cycles: 3
lock:
  strategy: poll
  quantum: 5ms
  wait: 20ms
metrics_addr: ":9102"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Barrier.Parties)
	assert.Equal(t, 3, cfg.Barrier.Cycles)
	assert.Equal(t, time.Millisecond, cfg.Barrier.Jitter, "unset fields keep defaults")
	assert.Equal(t, "poll", cfg.Lock.Strategy)
	assert.Equal(t, 5*time.Millisecond, cfg.Lock.Quantum)
	assert.Equal(t, 20*time.Millisecond, cfg.Lock.Wait)
	assert.Equal(t, 4, cfg.Lock.Contenders)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := writeConfig(t, "barrier:\n  partys: 3\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Barrier.Parties = 0
	cfg.Lock.Strategy = "spin"
	cfg.Lock.Contenders = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "barrier.parties")
	assert.Contains(t, err.Error(), "lock.strategy")
	assert.Contains(t, err.Error(), "lock.contenders")
}
