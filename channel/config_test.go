package channel

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "gattlink")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "channel.toml")
	if err := ioutil.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
idle_timeout = "30s"
bredr_enabled = false
legacy_timeout_reason = true
drop_acl_when_exhausted = false
service_change_start_handle = 12
service_change_end_handle = 288
service_change_suppressed_names = ["Flaky Speaker", "Old Headset"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, Duration(30*time.Second), cfg.IdleTimeout)
	require.False(t, cfg.BREDREnabled)
	require.True(t, cfg.LegacyTimeoutReason)
	require.False(t, cfg.DropWhenExhausted)
	require.Equal(t, uint16(12), cfg.ServiceChangeStartHandle)
	require.Equal(t, uint16(288), cfg.ServiceChangeEndHandle)
	require.Equal(t, []string{"Flaky Speaker", "Old Headset"}, cfg.ServiceChangeSuppressedNames)
}

func TestLoadConfigKeepsDefaultsForAbsentFields(t *testing.T) {
	path := writeConfig(t, `idle_timeout = "5s"`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	require.Equal(t, Duration(5*time.Second), cfg.IdleTimeout)
	require.Equal(t, def.BREDREnabled, cfg.BREDREnabled)
	require.Equal(t, def.ServiceChangeEndHandle, cfg.ServiceChangeEndHandle)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `idle_timeout = "soon"`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/channel.toml")
	require.Error(t, err)
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()

	def := DefaultConfig()
	require.Equal(t, def.IdleTimeout, cfg.IdleTimeout)
	require.Equal(t, def.ServiceChangeStartHandle, cfg.ServiceChangeStartHandle)
	require.Equal(t, def.ServiceChangeEndHandle, cfg.ServiceChangeEndHandle)

	// explicit settings survive
	cfg = Config{IdleTimeout: Duration(2 * time.Second)}.withDefaults()
	require.Equal(t, Duration(2*time.Second), cfg.IdleTimeout)
}
