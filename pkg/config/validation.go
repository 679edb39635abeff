package config

import (
	"fmt"
	"strings"
)

var (
	inputFormats  = []string{"auto", "yaml", "text"}
	outputFormats = []string{"text", "json", "yaml"}
	logFormats    = []string{"text", "json", "logfmt"}
)

// validate validates the configuration
func validate(cfg *Config) error {
	if err := cfg.Decoder.LoRa().Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}

	if !oneOf(cfg.Input.Format, inputFormats) {
		return fmt.Errorf("input.format must be one of %s", strings.Join(inputFormats, ", "))
	}
	if !oneOf(cfg.Output.Format, outputFormats) {
		return fmt.Errorf("output.format must be one of %s", strings.Join(outputFormats, ", "))
	}
	if cfg.Logging.Format != "" && !oneOf(cfg.Logging.Format, logFormats) {
		return fmt.Errorf("logging.format must be one of %s", strings.Join(logFormats, ", "))
	}

	if cfg.Database.Enabled && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required when database is enabled")
	}
	if cfg.Database.Retention < 0 {
		return fmt.Errorf("database.retention must not be negative")
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
		if cfg.Web.StatsInterval <= 0 {
			return fmt.Errorf("web.stats_interval must be positive")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		p := cfg.Metrics.Prometheus
		if p.Port <= 0 || p.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(p.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
