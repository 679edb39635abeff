package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dbehnke/lora-nexus/pkg/capture"
	"github.com/dbehnke/lora-nexus/pkg/config"
	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/logger"
	"github.com/dbehnke/lora-nexus/pkg/metrics"
	"github.com/dbehnke/lora-nexus/pkg/processor"
	"github.com/dbehnke/lora-nexus/pkg/report"
	"github.com/dbehnke/lora-nexus/pkg/retention"
	"github.com/dbehnke/lora-nexus/pkg/web"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process exit so it can be driven from tests
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("lora-nexus", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	configFile := fs.StringP("config", "c", "", "Path to configuration file")
	fs.Int("sf", 7, "Default spreading factor (6..12)")
	fs.Int("cr", 4, "Default code rate as redundancy bits (1..4 for 4/5..4/8)")
	implicit := fs.Bool("implicit", false, "Default to implicit header mode")
	fs.StringP("format", "f", "text", "Report format: text, json or yaml")
	fs.String("input", "auto", "Capture format: auto, yaml or text")
	fs.Bool("pack", false, "Also report nibbles packed two per byte")
	db := fs.String("db", "", "Record decodes in this SQLite database")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	serve := fs.Bool("serve", false, "Keep serving the web dashboard and metrics after decoding")
	showVersion := fs.Bool("version", false, "Show version information")
	validate := fs.Bool("validate", false, "Validate configuration and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lora-nexus [options] [capture ...]\n\n")
		fmt.Fprintf(stderr, "Decodes LoRa symbol captures. With no capture arguments the\n")
		fmt.Fprintf(stderr, "configured input paths are used, then standard input.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "LoRa-Nexus %s (commit %s, built %s)\n", version, commit, buildTime)
		return 0
	}

	// Basic console logger until the configuration is known
	log := logger.New(logger.Config{Level: "info", Format: "text", Output: stderr})

	if err := config.BindFlags(fs); err != nil {
		log.Error("Failed to bind flags", logger.Error(err))
		return 1
	}
	if *implicit {
		viper.Set("decoder.header", false)
	}
	if *db != "" {
		viper.Set("database.enabled", true)
	}
	if *serve {
		viper.Set("web.enabled", true)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		return 1
	}

	if *validate {
		log.Info("Configuration is valid", logger.String("decoder", cfg.Decoder.LoRa().String()))
		return 0
	}

	// Reinitialize logger with config settings
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	})
	log.Debug("Configuration loaded",
		logger.String("config_file", *configFile),
		logger.String("decoder", cfg.Decoder.LoRa().String()))

	outFormat, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		log.Error("Invalid output format", logger.Error(err))
		return 1
	}
	inFormat, err := capture.ParseFormat(cfg.Input.Format)
	if err != nil {
		log.Error("Invalid input format", logger.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := metrics.NewCollector()

	proc := processor.New(cfg.Decoder.LoRa(), log)
	proc.SetPack(cfg.Output.Pack)
	if cfg.Metrics.Enabled {
		proc.SetMetrics(collector)
	}

	var repo *database.DecodeRepository
	if cfg.Database.Enabled {
		store, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			log.Error("Failed to open database", logger.Error(err))
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("Failed to close database", logger.Error(err))
			}
		}()
		repo = database.NewDecodeRepository(store.GetDB())
		proc.SetRepository(repo)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if repo != nil && cfg.Database.Retention > 0 {
		pruner := retention.NewPruner(repo, cfg.Database.Retention, cfg.Database.PruneInterval, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			pruner.Start(ctx)
		}()
	}

	var server *web.Server
	if cfg.Web.Enabled {
		web.SetVersionInfo(version, commit, buildTime)
		server = web.NewServer(cfg.Web, cfg.Decoder.LoRa(), collector, repo, log)
		proc.SetNotifier(server.GetHub())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Web server error", logger.Error(err))
			}
		}()
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				collector,
				log,
			)
			if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	serving := cfg.Web.Enabled || (cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled)

	captures, err := loadCaptures(fs.Args(), cfg.Input.Paths, inFormat, stdin, serving)
	if err != nil {
		log.Error("Failed to load captures", logger.Error(err))
		return 1
	}

	if server != nil && len(captures) > 0 {
		server.SetStatus(web.StateDecoding)
	}
	results, err := proc.ProcessAll(ctx, captures)
	if werr := report.Write(stdout, outFormat, results); werr != nil {
		log.Error("Failed to write report", logger.Error(werr))
		return 1
	}
	if err != nil {
		log.Error("Decode failed", logger.Error(err))
		return 1
	}

	log.Info("Decoding complete",
		logger.Int("captures", len(results)),
		logger.Uint64("rejected", collector.GetRejected()))

	if !serving {
		return 0
	}

	if server != nil {
		server.SetStatus(web.StateServing)
	}
	log.Info("Serving until interrupted")
	<-ctx.Done()
	log.Info("Received shutdown signal")
	return 0
}

// loadCaptures reads captures from the command line paths, falling back to
// the configured paths and then to stdin. A server with nothing to decode
// does not wait on stdin.
func loadCaptures(args, configured []string, format capture.Format, stdin io.Reader, serving bool) ([]*capture.Capture, error) {
	paths := args
	if len(paths) == 0 {
		paths = configured
	}
	if len(paths) == 0 {
		if serving {
			return nil, nil
		}
		paths = []string{"-"}
	}

	captures := make([]*capture.Capture, 0, len(paths))
	for _, p := range paths {
		if p != "-" {
			c, err := capture.Load(p, format)
			if err != nil {
				return nil, err
			}
			captures = append(captures, c)
			continue
		}

		c, err := capture.Parse(stdin, format)
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		if c.Name == "" {
			c.Name = "stdin"
		}
		c.Source = "-"
		captures = append(captures, c)
	}
	return captures, nil
}
