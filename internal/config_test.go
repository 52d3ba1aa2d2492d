package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 600*time.Second, cfg.MediaTimeout)
	assert.Equal(t, 3, cfg.ChunkMaxAttempts)
	assert.Equal(t, 30, cfg.PollMaxAttempts)
	assert.Equal(t, 280, cfg.TweetMaxLength)
	assert.Equal(t, int64(10*MiB), cfg.TikTokChunkSize)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PUBLISH_POLL_MAX_ATTEMPTS", "12")
	t.Setenv("PUBLISH_THREAD_DELAY", "1s")
	t.Setenv("TWITTER_API_URL", "http://localhost:8080/")
	t.Setenv("X_CONSUMER_KEY", "ck")
	t.Setenv("PUBLISH_CHUNK_MAX_ATTEMPTS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.PollMaxAttempts)
	assert.Equal(t, time.Second, cfg.ThreadDelay)
	assert.Equal(t, "http://localhost:8080", cfg.TwitterAPIURL)
	assert.Equal(t, "ck", cfg.TwitterConsumerKey)
	assert.Equal(t, 3, cfg.ChunkMaxAttempts)
}

func TestValidateRejectsTikTokChunkSize(t *testing.T) {
	cfg := Default()
	cfg.TikTokChunkSize = MiB
	assert.Error(t, cfg.Validate())

	cfg.TikTokChunkSize = 64 * MiB
	assert.NoError(t, cfg.Validate())
}
