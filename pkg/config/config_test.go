package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsNeedCredentials(t *testing.T) {
	c := Default()
	assert.Equal(t, "https://headscale.nxthdr.dev/api/v1/node", c.HeadscaleURL)
	assert.Equal(t, "https://peerlab.nxthdr.dev/service/mappings", c.GatewayURL)
	assert.Equal(t, "/etc/bird/peerlab_generated.conf", c.Output)
	assert.NoError(t, c.ValidateRender())

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEADSCALE_API_KEY")
	assert.Contains(t, err.Error(), "PEERLAB_AGENT_KEY")
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peerlab-bird.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
headscale_api_key: from-file
output_file: /tmp/file.conf
mode: split
interval: 5m
reload_bird: true
`), 0o600))

	c := Default()
	require.NoError(t, c.LoadFile(path))
	require.NoError(t, c.ApplyEnv(envMap(map[string]string{
		"PEERLAB_AGENT_KEY":  "from-env",
		"BIRD_CONFIG_OUTPUT": "/tmp/env.conf",
		"BIRD_CONFIG_MODE":   "",
		"HTTP_TIMEOUT":       "10s",
	})))

	assert.Equal(t, "from-file", c.HeadscaleAPIKey)
	assert.Equal(t, "from-env", c.GatewayAgentKey)
	assert.Equal(t, "/tmp/env.conf", c.Output)
	assert.Equal(t, "split", c.Mode)
	assert.Equal(t, 5*time.Minute, c.Interval)
	assert.Equal(t, 10*time.Second, c.HTTPTimeout)
	assert.True(t, c.Reload)
	assert.Equal(t, "https://headscale.nxthdr.dev/api/v1/node", c.HeadscaleURL)
	assert.NoError(t, c.Validate())
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envMap(map[string]string{"RELOAD_BIRD": "maybe"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELOAD_BIRD")
}

func TestValidateRenderRejectsUnknownMode(t *testing.T) {
	c := Default()
	c.Mode = "prefix-only"
	c.Digest = "md5"
	err := c.ValidateRender()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output mode")
	assert.Contains(t, err.Error(), "digest algorithm")
}

func TestJournalPath(t *testing.T) {
	c := Default()
	assert.Equal(t, "", c.JournalPath())

	require.NoError(t, c.ApplyEnv(envMap(map[string]string{"JOURNAL": "true"})))
	assert.Equal(t, "/var/lib/peerlab-bird/state.db", c.JournalPath())

	c.StateDB = "/tmp/runs.db"
	assert.Equal(t, "/tmp/runs.db", c.JournalPath())
}
