package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"banksia.lava.moe/internal/models"
)

const (
	defaultRealtimeBaseURL = "https://api.opendata.transport.vic.gov.au/opendata/public-transport/gtfs/realtime/v1"

	// The schedule bundle is published as a dataset resource; the resource
	// uuid changes when the distributor re-publishes, so it is
	// substituted into the template per trigger.
	defaultDatasetURLTemplate = "https://opendata.transport.vic.gov.au/dataset/3f4e292e-7f8a-4ffe-831f-1953be0fe448/resource/%s/download/gtfs.zip"
	defaultDatasetID          = "fb152201-859f-4882-9206-b768060b50ad"
)

// Config holds the application configuration
type Config struct {
	Env     string
	APIKeys []string

	DatasetURL         string // explicit download URL; dataset ids are ignored when set
	DatasetURLTemplate string
	DatasetID          string
	DBPath             string
	WorkDir            string
	KeepWorkFiles      bool

	ArchiveDir      string
	RealtimeBaseURL string
	RealtimeKey     string
	PollInterval    time.Duration
	Feeds           []models.Feed
}

// Load loads the configuration from environment variables and an optional
// .env file. OPENDATA_KEY and API_KEYS are required; everything else has
// a default. FEEDS_FILE may point to a YAML file overriding the fixed
// realtime endpoint list.
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	realtimeKey := os.Getenv("OPENDATA_KEY")
	if realtimeKey == "" {
		return nil, fmt.Errorf("OPENDATA_KEY environment variable is required")
	}

	apiKeys := os.Getenv("API_KEYS")
	if apiKeys == "" {
		return nil, fmt.Errorf("API_KEYS environment variable is required")
	}
	keys := strings.Split(apiKeys, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}

	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		APIKeys:            keys,
		DatasetURL:         os.Getenv("DATASET_URL"),
		DatasetURLTemplate: getEnv("DATASET_URL_TEMPLATE", defaultDatasetURLTemplate),
		DatasetID:          getEnv("DATASET_ID", defaultDatasetID),
		DBPath:             getEnv("DB_PATH", "./data/gtfs.db"),
		WorkDir:            getEnv("WORK_DIR", os.TempDir()+"/banksia"),
		ArchiveDir:         getEnv("ARCHIVE_DIR", "./data/gtfsr-archive"),
		RealtimeBaseURL:    getEnv("REALTIME_BASE_URL", defaultRealtimeBaseURL),
		RealtimeKey:        realtimeKey,
		PollInterval:       10 * time.Second,
		Feeds:              models.DefaultFeeds(),
	}

	if !strings.Contains(cfg.DatasetURLTemplate, "%s") {
		return nil, fmt.Errorf("DATASET_URL_TEMPLATE must contain a %%s dataset id placeholder")
	}

	if v := os.Getenv("KEEP_WORK_FILES"); v != "" {
		keep, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEP_WORK_FILES value %q: %w", v, err)
		}
		cfg.KeepWorkFiles = keep
	}

	if path := os.Getenv("FEEDS_FILE"); path != "" {
		feeds, err := loadFeedsFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading feeds file: %w", err)
		}
		cfg.Feeds = feeds
	}

	return cfg, nil
}

// DatasetURLFor resolves the download URL for one ingest trigger. A fixed
// DatasetURL wins over everything; otherwise the dataset id, defaulting to
// the configured resource id, is substituted into the URL template.
func (c *Config) DatasetURLFor(id string) string {
	if c.DatasetURL != "" {
		return c.DatasetURL
	}
	if id == "" {
		id = c.DatasetID
	}
	return fmt.Sprintf(c.DatasetURLTemplate, id)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type feedsFile struct {
	Feeds []struct {
		Mode string `yaml:"mode"`
		Kind string `yaml:"kind"`
	} `yaml:"feeds"`
}

func loadFeedsFile(path string) ([]models.Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(f.Feeds) == 0 {
		return nil, fmt.Errorf("%s defines no feeds", path)
	}

	feeds := make([]models.Feed, 0, len(f.Feeds))
	for _, e := range f.Feeds {
		if e.Mode == "" || e.Kind == "" {
			return nil, fmt.Errorf("%s: feed entries need both mode and kind", path)
		}
		feeds = append(feeds, models.Feed{Mode: models.Mode(e.Mode), Kind: models.Kind(e.Kind)})
	}
	return feeds, nil
}
