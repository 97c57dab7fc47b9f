// Package config loads the scraper's configuration from a JSON file,
// environment variables and built-in defaults, in ascending precedence of
// defaults < file < environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	MongoDBURI             string          `mapstructure:"mongodb-uri"`
	DflatDBName            string          `mapstructure:"dflat-db-name"`
	EntryExpiryTimeSeconds int             `mapstructure:"entry-expiry-time-seconds"`
	MaxConcurrentTransfers int             `mapstructure:"max-concurrent-transfers"`
	MaxConcurrentTasks     int             `mapstructure:"max-concurrent-tasks"`
	Curl                   CurlConfig      `mapstructure:"curl"`
	Buxtehude              BuxtehudeConfig `mapstructure:"buxtehude"`
	Scrape                 ScrapeConfig    `mapstructure:"scrape"`
	Logging                LoggingConfig   `mapstructure:"logging"`
	Diag                   DiagConfig      `mapstructure:"diag"`
	Telemetry              TelemetryConfig `mapstructure:"telemetry"`
}

// CurlConfig holds HTTP transfer settings.
type CurlConfig struct {
	UserAgent string `mapstructure:"user-agent"`
}

// BuxtehudeConfig holds the bus connection settings.
type BuxtehudeConfig struct {
	Type           string `mapstructure:"type"` // "inet" or "unix"
	PathOrHostname string `mapstructure:"path-or-hostname"`
	Port           int    `mapstructure:"port"`
	ClientName     string `mapstructure:"client-name"`
	Format         string `mapstructure:"format"` // "msgpack" or "json"
}

// ScrapeConfig holds politeness settings for retailer fetches.
type ScrapeConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no-color"`
}

// DiagConfig holds the diagnostics listener configuration.
type DiagConfig struct {
	Addr string `mapstructure:"addr"`
}

// TelemetryConfig holds the OpenTelemetry exporter configuration.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service-name"`
	Environment string `mapstructure:"environment"`
}

// Load reads the configuration file at configPath. A missing file is an
// error; the service refuses to start half-configured.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = "config.json"
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("FITSCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Buxtehude.Type {
	case "inet", "unix":
	default:
		return fmt.Errorf("buxtehude.type must be \"inet\" or \"unix\", got %q", c.Buxtehude.Type)
	}
	if c.EntryExpiryTimeSeconds <= 0 {
		return fmt.Errorf("entry-expiry-time-seconds must be positive, got %d", c.EntryExpiryTimeSeconds)
	}
	if c.MaxConcurrentTransfers <= 0 {
		return fmt.Errorf("max-concurrent-transfers must be positive, got %d", c.MaxConcurrentTransfers)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dflat-db-name", "fitsch")
	v.SetDefault("entry-expiry-time-seconds", 172800)
	v.SetDefault("max-concurrent-transfers", 32)
	v.SetDefault("max-concurrent-tasks", 16)

	v.SetDefault("curl.user-agent", "")

	v.SetDefault("buxtehude.type", "inet")
	v.SetDefault("buxtehude.path-or-hostname", "localhost")
	v.SetDefault("buxtehude.port", 1637)
	v.SetDefault("buxtehude.client-name", "webscraper")
	v.SetDefault("buxtehude.format", "msgpack")

	v.SetDefault("scrape.requests-per-second", 0.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.no-color", false)

	v.SetDefault("diag.addr", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service-name", "fitsch-scraper")
	v.SetDefault("telemetry.environment", "production")
}
