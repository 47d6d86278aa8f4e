package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Detector   DetectorConfig   `yaml:"detector" mapstructure:"detector"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// RegistryConfig configures the canonical registry backend.
type RegistryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DetectorConfig configures the four duplicate-detection phases.
type DetectorConfig struct {
	// FuzzyThreshold is the minimum pairwise similarity for a fuzzy group.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	// MetadataConfidence is the fixed similarity assigned to metadata-signature
	// matches; it is not computed per pair.
	MetadataConfidence float64 `yaml:"metadata_confidence" mapstructure:"metadata_confidence"`
	// OverlapMin and OverlapMax bound the partial-overlap band. A pair
	// qualifies only when the shared-page proportion of at least one side
	// falls strictly inside the band.
	OverlapMin float64 `yaml:"overlap_min" mapstructure:"overlap_min"`
	OverlapMax float64 `yaml:"overlap_max" mapstructure:"overlap_max"`
	// AlignPrefixBytes bounds the text prefix used for the alignment ratio so
	// very large documents stay cheap to compare.
	AlignPrefixBytes int `yaml:"align_prefix_bytes" mapstructure:"align_prefix_bytes"`
	// BucketCutover is the corpus size beyond which fuzzy matching restricts
	// candidate pairs to documents sharing a simhash band instead of
	// comparing all pairs.
	BucketCutover int `yaml:"bucket_cutover" mapstructure:"bucket_cutover"`
}

// QualityConfig configures extraction-fidelity scoring.
type QualityConfig struct {
	// CharsPerPage is the expected character density of a cleanly extracted
	// page; actual density is scored against it.
	CharsPerPage int `yaml:"chars_per_page" mapstructure:"chars_per_page"`
	// MinTextLength is the minimum normalized length below which a document
	// is fingerprinted against the empty-content marker.
	MinTextLength int `yaml:"min_text_length" mapstructure:"min_text_length"`
}

// IngestConfig configures the canonicalization run.
type IngestConfig struct {
	// Workers bounds the fingerprint/quality worker pool; 0 means one worker
	// per CPU core. Registry writes always go through a single writer.
	Workers    int    `yaml:"workers" mapstructure:"workers"`
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// ExtractConfig configures text extraction. Provider selects how PDF pages
// are read: "pdftotext" shells out to the poppler CLI, "builtin" parses
// content streams in-process.
type ExtractConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures collection mirroring.
type FetchConfig struct {
	TempDir        string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	FTPTimeoutSecs int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// ServerConfig configures the read-only lookup API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures background registry health checks. Alerts are
// delivered to WebhookURL; an empty URL disables delivery.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ConflictBacklogMax   int     `yaml:"conflict_backlog_max" mapstructure:"conflict_backlog_max"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEDUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("registry.driver", "sqlite")
	v.SetDefault("registry.sqlite_path", "dedup.db")
	v.SetDefault("detector.fuzzy_threshold", 0.90)
	v.SetDefault("detector.metadata_confidence", 0.95)
	v.SetDefault("detector.overlap_min", 0.10)
	v.SetDefault("detector.overlap_max", 0.90)
	v.SetDefault("detector.align_prefix_bytes", 4096)
	v.SetDefault("detector.bucket_cutover", 2000)
	v.SetDefault("quality.chars_per_page", 1800)
	v.SetDefault("quality.min_text_length", 8)
	v.SetDefault("ingest.workers", 0)
	v.SetDefault("ingest.output_dir", "canonical")
	v.SetDefault("extract.provider", "pdftotext")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.timeout_secs", 120)
	v.SetDefault("fetch.temp_dir", "/tmp/dedup-fetch")
	v.SetDefault("fetch.user_agent", "dedup-cli/1.0")
	v.SetDefault("fetch.rate_per_sec", 4.0)
	v.SetDefault("fetch.burst", 2)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.ftp_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.conflict_backlog_max", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is coherent enough to run against.
// A misconfigured registry is fatal before any work starts; running without
// durability guarantees is never an option.
func (c *Config) Validate() error {
	switch c.Registry.Driver {
	case "sqlite":
		if c.Registry.SQLitePath == "" {
			return eris.New("config: registry.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Registry.DatabaseURL == "" {
			return eris.New("config: registry.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown registry driver %q", c.Registry.Driver)
	}

	if c.Detector.FuzzyThreshold <= 0 || c.Detector.FuzzyThreshold > 1 {
		return eris.Errorf("config: detector.fuzzy_threshold %.2f outside (0,1]", c.Detector.FuzzyThreshold)
	}
	if c.Detector.MetadataConfidence <= 0 || c.Detector.MetadataConfidence > 1 {
		return eris.Errorf("config: detector.metadata_confidence %.2f outside (0,1]", c.Detector.MetadataConfidence)
	}
	if c.Detector.OverlapMin < 0 || c.Detector.OverlapMax > 1 || c.Detector.OverlapMin >= c.Detector.OverlapMax {
		return eris.Errorf("config: detector overlap band [%.2f, %.2f] is not a valid sub-range of [0,1]",
			c.Detector.OverlapMin, c.Detector.OverlapMax)
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
