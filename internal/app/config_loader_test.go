package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfigFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "yt-dlp", config.Extract.YTDLPBinary)
	assert.Equal(t, "gallery-dl", config.Extract.GalleryBinary)
	assert.Equal(t, 120*time.Second, config.Extract.StrategyTimeout)
	assert.Equal(t, 5*time.Minute, config.Extract.CacheTTL)
	assert.Equal(t, 5, config.Download.MaxConcurrentStreams)
	assert.Equal(t, 15*time.Second, config.Fallback.FetchTimeout)
	assert.Equal(t, 5, config.Fallback.MaxRedirects)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
extract:
  ytdlp_binary: /opt/bin/yt-dlp
download:
  max_concurrent_streams: 2
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "/opt/bin/yt-dlp", config.Extract.YTDLPBinary)
	assert.Equal(t, 2, config.Download.MaxConcurrentStreams)
	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 99999
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadConfig_InvalidStreamCeiling(t *testing.T) {
	path := writeConfigFile(t, `
download:
  max_concurrent_streams: 0
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "streams")
}

func TestLoadConfig_PathExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := writeConfigFile(t, `
download:
  output_dir: ~/media-out
database:
  path: $HOME/media.db
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "media-out"), config.Download.OutputDir)
	assert.Equal(t, filepath.Join(home, "media.db"), config.Database.Path)
}
