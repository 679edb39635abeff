package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Web      WebConfig      `mapstructure:"web"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DecoderConfig holds the default modulation parameters. A capture file that
// names its own parameters overrides these.
type DecoderConfig struct {
	SpreadingFactor int  `mapstructure:"spreading_factor"`
	CodeRate        int  `mapstructure:"code_rate"` // redundancy bits, 1..4 (CR 4/5..4/8)
	Header          bool `mapstructure:"header"`    // explicit header mode
}

// LoRa returns the decoder parameters as a codec configuration
func (d DecoderConfig) LoRa() lora.Config {
	return lora.Config{
		SpreadingFactor: d.SpreadingFactor,
		CodeRate:        d.CodeRate,
		Header:          d.Header,
	}
}

// InputConfig holds capture input settings
type InputConfig struct {
	Format string   `mapstructure:"format"` // auto, yaml, text
	Paths  []string `mapstructure:"paths"`
}

// OutputConfig holds report settings
type OutputConfig struct {
	Format string `mapstructure:"format"` // text, json, yaml
	Pack   bool   `mapstructure:"pack"`   // also report nibbles packed two per byte
}

// DatabaseConfig holds decode history settings
type DatabaseConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	Retention     time.Duration `mapstructure:"retention"` // 0 keeps history forever
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"sf":        "decoder.spreading_factor",
	"cr":        "decoder.code_rate",
	"format":    "output.format",
	"input":     "input.format",
	"pack":      "output.pack",
	"db":        "database.path",
	"log-level": "logging.level",
}

// BindFlags binds any of the known flags present in fs so that a flag set on
// the command line overrides the file and environment values.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/lora-nexus")
	}

	// LORA_DECODER_SPREADING_FACTOR and friends
	viper.SetEnvPrefix("LORA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Decoder defaults
	viper.SetDefault("decoder.spreading_factor", 7)
	viper.SetDefault("decoder.code_rate", 4)
	viper.SetDefault("decoder.header", true)

	viper.SetDefault("input.format", "auto")
	viper.SetDefault("input.paths", []string{})

	viper.SetDefault("output.format", "text")
	viper.SetDefault("output.pack", false)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.path", "data/lora-nexus.db")
	viper.SetDefault("database.retention", "0s")
	viper.SetDefault("database.prune_interval", "1h")

	// Web defaults
	viper.SetDefault("web.enabled", false)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("web.stats_interval", "5s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", false)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
