package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldside/gprslink/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	log.Init(true)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDevice, cfg.Device)
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate)
	assert.Equal(t, DefaultRegistrationTimeout, cfg.RegistrationTimeout.Value())
	assert.Equal(t, DefaultNegotiationTimeout, cfg.NegotiationTimeout.Value())
	assert.Equal(t, DefaultMonitorInterval, cfg.MonitorInterval.Value())
	assert.Equal(t, DefaultMaxFail, cfg.MaxFail)
}

func TestLoadOverridesDefaults(t *testing.T) {
	log.Init(true)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
device = "/dev/ttyAMA0"
baud_rate = 115200
apn = "internet.example"
registration_timeout = "2m"
monitor_interval = "10s"
max_fail = 0
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA0", cfg.Device)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, "internet.example", cfg.APN)
	assert.Equal(t, 2*time.Minute, cfg.RegistrationTimeout.Value())
	assert.Equal(t, 10*time.Second, cfg.MonitorInterval.Value())
	assert.Equal(t, 0, cfg.MaxFail)

	// Untouched fields keep their defaults
	assert.Equal(t, DefaultNegotiationTimeout, cfg.NegotiationTimeout.Value())
}

func TestVerify(t *testing.T) {
	cfg := Defaults()
	assert.ErrorIs(t, cfg.Verify(), ErrMissingAPN)

	cfg.APN = "internet.example"
	assert.NoError(t, cfg.Verify())

	cfg.BaudRate = 0
	assert.Error(t, cfg.Verify())

	cfg.BaudRate = DefaultBaudRate
	cfg.MaxFail = -1
	assert.Error(t, cfg.Verify())
}
