package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banksia.lava.moe/internal/models"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENDATA_KEY", "upstream-key")
	t.Setenv("API_KEYS", "alpha, beta")

	// Clear anything the surrounding environment may define.
	for _, key := range []string{"ENV", "DATASET_URL", "DATASET_URL_TEMPLATE", "DATASET_ID",
		"DB_PATH", "WORK_DIR", "ARCHIVE_DIR", "REALTIME_BASE_URL", "KEEP_WORK_FILES", "FEEDS_FILE"} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresUpstreamKey(t *testing.T) {
	t.Setenv("OPENDATA_KEY", "")
	t.Setenv("API_KEYS", "alpha")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENDATA_KEY")
}

func TestLoadRequiresAPIKeys(t *testing.T) {
	t.Setenv("OPENDATA_KEY", "upstream-key")
	t.Setenv("API_KEYS", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEYS")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys, "keys are split and trimmed")
	assert.Equal(t, "upstream-key", cfg.RealtimeKey)
	assert.Empty(t, cfg.DatasetURL)
	assert.Equal(t, defaultDatasetURLTemplate, cfg.DatasetURLTemplate)
	assert.Equal(t, defaultDatasetID, cfg.DatasetID)
	assert.Equal(t, defaultRealtimeBaseURL, cfg.RealtimeBaseURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.False(t, cfg.KeepWorkFiles)
	assert.Equal(t, models.DefaultFeeds(), cfg.Feeds)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("DATASET_URL", "https://example.com/gtfs.zip")
	t.Setenv("KEEP_WORK_FILES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://example.com/gtfs.zip", cfg.DatasetURL)
	assert.True(t, cfg.KeepWorkFiles)
}

func TestLoadRejectsTemplateWithoutPlaceholder(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATASET_URL_TEMPLATE", "https://example.com/gtfs.zip")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATASET_URL_TEMPLATE")
}

func TestDatasetURLFor(t *testing.T) {
	cfg := &Config{
		DatasetURLTemplate: "https://example.com/resource/%s/download/gtfs.zip",
		DatasetID:          "default-id",
	}

	assert.Equal(t, "https://example.com/resource/abc-123/download/gtfs.zip",
		cfg.DatasetURLFor("abc-123"))
	assert.Equal(t, "https://example.com/resource/default-id/download/gtfs.zip",
		cfg.DatasetURLFor(""))

	cfg.DatasetURL = "https://example.com/fixed.zip"
	assert.Equal(t, "https://example.com/fixed.zip", cfg.DatasetURLFor("abc-123"),
		"a fixed URL wins over any dataset id")
}

func TestLoadRejectsBadKeepWorkFiles(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KEEP_WORK_FILES", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEEP_WORK_FILES")
}

func TestLoadFeedsFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "feeds.yaml")
	content := "feeds:\n" +
		"  - mode: metro\n" +
		"    kind: trip-updates\n" +
		"  - mode: tram\n" +
		"    kind: service-alerts\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("FEEDS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []models.Feed{
		{Mode: models.ModeMetro, Kind: models.KindTripUpdates},
		{Mode: models.ModeTram, Kind: models.KindServiceAlerts},
	}, cfg.Feeds)
}

func TestLoadFeedsFileRejectsEmptyList(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feeds: []\n"), 0o644))
	t.Setenv("FEEDS_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFeedsFileRejectsPartialEntries(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feeds:\n  - mode: metro\n"), 0o644))
	t.Setenv("FEEDS_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
