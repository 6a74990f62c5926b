package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080", cfg.APIURL)
	require.Equal(t, 2, cfg.PageSize)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "activity_cache_changes", cfg.ChangefeedTopic)
	require.False(t, cfg.ChangefeedEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACTIVITYSYNC_API_URL", "http://api:9000")
	t.Setenv("ACTIVITYSYNC_PAGE_SIZE", "5")
	t.Setenv("ACTIVITYSYNC_HTTP_TIMEOUT", "3s")
	t.Setenv("ACTIVITYSYNC_KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092 ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://api:9000", cfg.APIURL)
	require.Equal(t, 5, cfg.PageSize)
	require.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.ChangefeedEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ACTIVITYSYNC_PAGE_SIZE", "many")
	_, err := Load()
	require.ErrorContains(t, err, "parse env:")

	t.Setenv("ACTIVITYSYNC_PAGE_SIZE", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadDevAPI(t *testing.T) {
	t.Setenv("DEVAPI_JWT_SECRET", "s3cret")

	cfg, err := LoadDevAPI()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "s3cret", cfg.JWTSecret)
	require.Equal(t, "activitysync.devapi", cfg.JWTIssuer)
	require.True(t, cfg.Seed)
}
