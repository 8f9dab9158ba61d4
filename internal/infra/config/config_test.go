package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "album.requests", cfg.RabbitMQRequestQueue)
	assert.Equal(t, "fiapx.album", cfg.RabbitMQExchange)
	assert.Equal(t, 5, cfg.AlbumMaxWorkers)
	assert.Equal(t, 5, cfg.DownloadRetries)
	assert.Equal(t, 0.3, cfg.FramesMinQuality)
	assert.Empty(t, cfg.DefaultIgnore)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ALBUM_MAX_WORKERS", "9")
	t.Setenv("DOWNLOAD_IGNORE", "preview,thumb")
	t.Setenv("FRAMES_PER_VIDEO", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.AlbumMaxWorkers)
	assert.Equal(t, []string{"preview", "thumb"}, cfg.DefaultIgnore)
	assert.Equal(t, 6, cfg.FramesPerVideo)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ALBUM_MAX_WORKERS", "0")
	t.Setenv("DOWNLOAD_RETRIES", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALBUM_MAX_WORKERS")
	assert.Contains(t, err.Error(), "DOWNLOAD_RETRIES")
}
