package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 3, config.Engine.MaxConcurrent)
	assert.Equal(t, 2, config.Engine.FailureThreshold)
	assert.Equal(t, []string{"720p", "1080p", "4k"}, config.Engine.AllowedQualities)
	assert.True(t, config.History.Enabled)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9090
engine:
  max_concurrent: 5
  retry_count: 1
  merge_timeout: 2m
  allowed_qualities:
    - 1080p
history:
  enabled: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 5, config.Engine.MaxConcurrent)
	assert.Equal(t, 1, config.Engine.RetryCount)
	assert.Equal(t, 2*time.Minute, config.Engine.MergeTimeout)
	assert.Equal(t, []string{"1080p"}, config.Engine.AllowedQualities)
	assert.False(t, config.History.Enabled)

	// Unset keys keep their defaults
	assert.Equal(t, int64(500*1024*1024), config.Engine.MaxArtifactSize)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 0\n"},
		{"zero workers", "engine:\n  max_concurrent: 0\n"},
		{"negative retries", "engine:\n  retry_count: -1\n"},
		{"empty allow-list", "engine:\n  allowed_qualities: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0644))

			_, err := LoadConfig(configPath)
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ytgrab/tmp"), expandPath("~/.ytgrab/tmp"))
	assert.Equal(t, home+"/.ytgrab/tmp", expandPath("$HOME/.ytgrab/tmp"))
	assert.Equal(t, "/var/tmp/ytgrab", expandPath("/var/tmp/ytgrab"))
}
