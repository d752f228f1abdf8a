// Package config loads application configuration from environment
// variables with an optional YAML file overlay, and owns every
// filesystem path the application touches.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Source   SourceConfig   `yaml:"source" envconfig:"SOURCE"`
	Download DownloadConfig `yaml:"download" envconfig:"DOWNLOAD"`
	Ingest   IngestConfig   `yaml:"ingest" envconfig:"INGEST"`
}

// ServerConfig configures the local HTTP service consumed by the GUI.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8484" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both" validate:"oneof=console file both"`
	FileName string `yaml:"file_name" envconfig:"FILE_NAME" default:"indistocks.log"`
}

// PathsConfig locates the data root. Everything else (store file,
// downloads cache, exports, logs) hangs off it; see Paths.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
	DBFile  string `yaml:"db_file" envconfig:"DB_FILE"`
}

// SourceConfig is the upstream data source contract: one archive
// resource addressable per trading date and a master symbol list.
// The archive URL template substitutes {date} with the trading date
// rendered in DateLayout.
type SourceConfig struct {
	ArchiveURL     string `yaml:"archive_url" envconfig:"ARCHIVE_URL" default:"https://archives.nseindia.com/products/content/sec_bhavdata_full_{date}.csv.zip" validate:"required,contains={date}"`
	DateLayout     string `yaml:"date_layout" envconfig:"DATE_LAYOUT" default:"02012006" validate:"required"`
	SymbolListURL  string `yaml:"symbol_list_url" envconfig:"SYMBOL_LIST_URL" default:"https://archives.nseindia.com/content/equities/EQUITY_L.csv" validate:"required,url"`
	UserAgent      string `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; rv:109.0) Gecko/20100101 Firefox/118.0"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"15s"`
}

// DownloadConfig bounds how hard the downloader leans on the source.
type DownloadConfig struct {
	MinInterval time.Duration `yaml:"min_interval" envconfig:"MIN_INTERVAL" default:"350ms"`
	MaxRetries  int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"3" validate:"min=1,max=10"`
	BackoffBase time.Duration `yaml:"backoff_base" envconfig:"BACKOFF_BASE" default:"500ms"`
	CacheRaw    bool          `yaml:"cache_raw" envconfig:"CACHE_RAW" default:"true"`
	Holidays    []string      `yaml:"holidays" envconfig:"HOLIDAYS"`
}

// IngestConfig tunes validation and upsert behavior.
type IngestConfig struct {
	// AutoRegisterSymbols controls the unknown-symbol policy: register a
	// minimal placeholder symbol (true) or reject the row (false).
	AutoRegisterSymbols bool   `yaml:"auto_register_symbols" envconfig:"AUTO_REGISTER_SYMBOLS" default:"true"`
	Epoch               string `yaml:"epoch" envconfig:"EPOCH" default:"1994-11-03" validate:"datetime=2006-01-02"`
	MaxTxRetries        int    `yaml:"max_tx_retries" envconfig:"MAX_TX_RETRIES" default:"3" validate:"min=1,max=10"`
	RecentlyViewedCap   int    `yaml:"recently_viewed_cap" envconfig:"RECENTLY_VIEWED_CAP" default:"20" validate:"min=1,max=100"`
}

// EpochDate returns the configured epoch as a UTC date.
func (c IngestConfig) EpochDate() time.Time {
	t, _ := time.Parse("2006-01-02", c.Epoch)
	return t
}

// HolidayDates parses the configured holiday list.
func (c DownloadConfig) HolidayDates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		t, err := time.Parse("2006-01-02", h)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Load builds the configuration from environment variables (prefix
// INDISTOCKS_), overlaid by the YAML file at configFile when it exists.
func Load(configFile string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("INDISTOCKS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := overlayFile(configFile, &cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := cfg.Download.HolidayDates(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func overlayFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
