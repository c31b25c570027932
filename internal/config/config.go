package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the floodwatch pipeline.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Normalizer    NormalizerConfig    `yaml:"normalizer"`
	Cluster       ClusterConfig       `yaml:"cluster"`
	Geocoder      GeocoderConfig      `yaml:"geocoder"`
	NLP           NLPConfig           `yaml:"nlp"`
	Redis         RedisConfig         `yaml:"redis"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `yaml:"port" env:"FLOODWATCH_PORT"`
	Debug   bool   `yaml:"debug" env:"FLOODWATCH_DEBUG"`
}

// ElasticsearchConfig holds search engine connection and index configuration.
type ElasticsearchConfig struct {
	URL            string        `yaml:"url" env:"ELASTICSEARCH_URL"`
	Username       string        `yaml:"username" env:"ELASTICSEARCH_USERNAME"`
	Password       string        `yaml:"password" env:"ELASTICSEARCH_PASSWORD"`
	Index          string        `yaml:"index" env:"ELASTICSEARCH_INDEX"`
	MaxRetries     int           `yaml:"max_retries"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxResults     int           `yaml:"max_results"`
	TimestampField string        `yaml:"timestamp_field"`
	GeoField       string        `yaml:"geo_field"`
}

// NormalizerConfig holds document normalization configuration.
type NormalizerConfig struct {
	// SupportedLanguages is the set of ISO 639-1 codes accepted by the
	// pipeline; documents in any other language are rejected.
	SupportedLanguages []string `yaml:"supported_languages" env:"FLOODWATCH_LANGS"`
	// WorldBordersPath points at the GeoJSON dataset used for
	// point-in-polygon country lookup.
	WorldBordersPath string `yaml:"world_borders_path" env:"WORLD_BORDERS_PATH"`
}

// ClusterConfig holds cluster building and representative selection settings.
type ClusterConfig struct {
	// MinEntries is the minimum document count for a segment to be retained.
	MinEntries int `yaml:"min_entries" env:"HOTSPOT_MIN_ENTRIES"`
	// Precision is the geohash grid precision for geo clustering.
	Precision int `yaml:"precision" env:"HOTSPOT_PRECISION"`
	// Interval is the default date histogram bucket interval.
	Interval string `yaml:"interval"`
	// SimilarityThreshold is the edit-distance ratio above which two texts
	// are considered near-duplicates.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// CellPaddingDeg pads degenerate single-point geo cells into a box.
	CellPaddingDeg float64 `yaml:"cell_padding_deg"`
}

// GeocoderConfig holds the geocoding service client configuration.
type GeocoderConfig struct {
	BaseURL  string        `yaml:"base_url" env:"GEOCODER_URL"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// NLPConfig holds the entity-tagging sidecar client configuration.
type NLPConfig struct {
	BaseURL string        `yaml:"base_url" env:"NLP_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds the geocode cache connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

// ArchiveConfig holds the historical-post parquet archive settings.
type ArchiveConfig struct {
	DataDir string `yaml:"data_dir" env:"ARCHIVE_DATA_DIR"`
}

// SchedulerConfig holds the periodic representative sweep settings.
type SchedulerConfig struct {
	// SweepSchedule is a cron expression for the representative sweep.
	SweepSchedule string `yaml:"sweep_schedule" env:"SWEEP_SCHEDULE"`
	// SweepWindow is the trailing time window each sweep covers.
	SweepWindow time.Duration `yaml:"sweep_window"`
	// SweepTerms are the grouping terms for the periodic sweep.
	SweepTerms []string `yaml:"sweep_terms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

// Default loads a configuration consisting entirely of defaults. Used by
// tests and the CLI when no config file is present.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "floodwatch"
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "1.0.0"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 8094
	}

	if cfg.Elasticsearch.URL == "" {
		cfg.Elasticsearch.URL = "http://localhost:9200"
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = "flood_posts"
	}
	if cfg.Elasticsearch.MaxRetries == 0 {
		cfg.Elasticsearch.MaxRetries = 3
	}
	if cfg.Elasticsearch.Timeout == 0 {
		cfg.Elasticsearch.Timeout = 30 * time.Second
	}
	if cfg.Elasticsearch.MaxResults == 0 {
		cfg.Elasticsearch.MaxResults = 1000
	}
	if cfg.Elasticsearch.TimestampField == "" {
		cfg.Elasticsearch.TimestampField = "created_at"
	}
	if cfg.Elasticsearch.GeoField == "" {
		cfg.Elasticsearch.GeoField = "location"
	}

	if len(cfg.Normalizer.SupportedLanguages) == 0 {
		cfg.Normalizer.SupportedLanguages = []string{"en", "es", "fr", "it"}
	}
	if cfg.Normalizer.WorldBordersPath == "" {
		cfg.Normalizer.WorldBordersPath = "data/world_borders.geojson"
	}

	if cfg.Cluster.MinEntries == 0 {
		cfg.Cluster.MinEntries = 5
	}
	if cfg.Cluster.Precision == 0 {
		cfg.Cluster.Precision = 5
	}
	if cfg.Cluster.Interval == "" {
		cfg.Cluster.Interval = "5m"
	}
	if cfg.Cluster.SimilarityThreshold == 0 {
		cfg.Cluster.SimilarityThreshold = 0.8
	}
	if cfg.Cluster.CellPaddingDeg == 0 {
		cfg.Cluster.CellPaddingDeg = 0.001
	}

	if cfg.Geocoder.BaseURL == "" {
		cfg.Geocoder.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Geocoder.Timeout == 0 {
		cfg.Geocoder.Timeout = 10 * time.Second
	}
	if cfg.Geocoder.CacheTTL == 0 {
		cfg.Geocoder.CacheTTL = 24 * time.Hour
	}

	if cfg.NLP.BaseURL == "" {
		cfg.NLP.BaseURL = "http://localhost:8095"
	}
	if cfg.NLP.Timeout == 0 {
		cfg.NLP.Timeout = 10 * time.Second
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Archive.DataDir == "" {
		cfg.Archive.DataDir = "data/archive"
	}

	if cfg.Scheduler.SweepSchedule == "" {
		cfg.Scheduler.SweepSchedule = "*/30 * * * *"
	}
	if cfg.Scheduler.SweepWindow == 0 {
		cfg.Scheduler.SweepWindow = 30 * time.Minute
	}
	if len(cfg.Scheduler.SweepTerms) == 0 {
		cfg.Scheduler.SweepTerms = []string{"location", "lang"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port: invalid port %d", c.Service.Port)
	}
	if c.Elasticsearch.URL == "" {
		return fmt.Errorf("elasticsearch.url: is required")
	}
	if c.Elasticsearch.Index == "" {
		return fmt.Errorf("elasticsearch.index: is required")
	}
	if c.Cluster.MinEntries < 1 {
		return fmt.Errorf("cluster.min_entries: must be at least 1")
	}
	if c.Cluster.Precision < 1 || c.Cluster.Precision > 12 {
		return fmt.Errorf("cluster.precision: must be between 1 and 12")
	}
	if c.Cluster.SimilarityThreshold <= 0 || c.Cluster.SimilarityThreshold > 1 {
		return fmt.Errorf("cluster.similarity_threshold: must be in (0, 1]")
	}
	if c.Cluster.CellPaddingDeg < 0 {
		return fmt.Errorf("cluster.cell_padding_deg: must not be negative")
	}
	return nil
}
