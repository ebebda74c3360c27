// Package config loads the harvester configuration from an optional YAML
// file with environment-variable overrides. The environment names match
// the ones the operators already use for this pipeline (M2M_* for the
// catalog API, S3_* for the destination store).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Coordinate is one corner of the bounding box.
type Coordinate struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// BoundingBox is the spatial filter of the harvest.
type BoundingBox struct {
	LowerLeft  Coordinate `yaml:"lower_left"`
	UpperRight Coordinate `yaml:"upper_right"`
}

// DateRange is a start/end date pair in YYYY-MM-DD form.
type DateRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Config is the full harvester configuration.
type Config struct {
	// ServiceURL is the catalog API base URL, ending in a slash.
	ServiceURL string `yaml:"service_url"`

	// Dataset is the dataset alias to harvest.
	Dataset string `yaml:"dataset"`

	// Username and Password are catalog API credentials.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Label names the fulfillment orders of this run. Stable within a
	// run; defaults to a generated harvest-<uuid> value.
	Label string `yaml:"label"`

	// Spatial is the bounding-box filter for scene search.
	Spatial BoundingBox `yaml:"spatial"`

	// Acquisition filters scenes by acquisition date.
	Acquisition DateRange `yaml:"acquisition"`

	// Temporal filters the dataset search by date. Independent of
	// Acquisition; they are supplied separately.
	Temporal DateRange `yaml:"temporal"`

	// MaxResults caps records per scene-search page (0: provider default).
	MaxResults int `yaml:"max_results"`

	// StagingDir is the transient directory for fetched payloads.
	StagingDir string `yaml:"staging_dir"`

	// Workers bounds concurrent transfer fetches.
	Workers int `yaml:"workers"`

	// RateLimit is the catalog API pace in requests per second.
	RateLimit float64 `yaml:"rate_limit"`

	// PollInterval is the sleep between fulfillment polls.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollMaxAttempts bounds fulfillment polls per order.
	PollMaxAttempts int `yaml:"poll_max_attempts"`

	// RetryMax is the number of transfer retry batches.
	RetryMax int `yaml:"retry_max"`

	// RetryDelay is the pause before each transfer retry batch.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// KeepExtensions lists the raster extensions to upload.
	KeepExtensions []string `yaml:"keep_extensions"`

	// Storage is the object-storage destination.
	Storage StorageConfig `yaml:"storage"`

	// LogLevel and LogPretty configure logging output.
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	// MetricsAddr serves Prometheus metrics when non-empty (host:port).
	MetricsAddr string `yaml:"metrics_addr"`
}

// StorageConfig is the object-storage destination.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ServiceURL:      "https://m2m.cr.usgs.gov/api/api/json/stable/",
		Label:           "harvest-" + uuid.NewString(),
		StagingDir:      os.TempDir(),
		Workers:         4,
		RateLimit:       2,
		PollInterval:    10 * time.Second,
		PollMaxAttempts: 60,
		RetryMax:        3,
		RetryDelay:      5 * time.Second,
		KeepExtensions:  []string{".jp2"},
		LogLevel:        "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	setString(&c.ServiceURL, "M2M_URL")
	setString(&c.Dataset, "M2M_DATASET")
	setString(&c.Username, "M2M_USER")
	setString(&c.Password, "M2M_PASS")
	setString(&c.Label, "M2M_LABEL")
	setString(&c.StagingDir, "M2M_STAGING_DIR")
	setInt(&c.Workers, "M2M_WORKERS")
	setDuration(&c.PollInterval, "M2M_POLL_INTERVAL")
	setInt(&c.PollMaxAttempts, "M2M_POLL_MAX_ATTEMPTS")
	setInt(&c.RetryMax, "M2M_RETRY_MAX")
	setDuration(&c.RetryDelay, "M2M_RETRY_DELAY")
	setString(&c.LogLevel, "M2M_LOG_LEVEL")
	setString(&c.MetricsAddr, "M2M_METRICS_ADDR")

	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Prefix, "S3_KEY")
	setString(&c.Storage.Region, "S3_REGION")
}

// Validate rejects configurations the run cannot start with.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("service URL is required")
	}
	if !strings.HasSuffix(c.ServiceURL, "/") {
		return fmt.Errorf("service URL must end in a slash")
	}
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("catalog credentials are required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll_max_attempts must be positive (got %d)", c.PollMaxAttempts)
	}
	return nil
}

// KeepExts returns the kept extensions as a lowercase lookup set.
func (c *Config) KeepExts() map[string]bool {
	keep := make(map[string]bool, len(c.KeepExtensions))
	for _, ext := range c.KeepExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		keep[ext] = true
	}
	return keep
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
