package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lora"

var (
	packetsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packets_decoded_total"),
		"Total packets decoded", []string{"config"}, nil)
	rejectedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packets_rejected_total"),
		"Total captures rejected for invalid parameters", nil, nil)
	symbolsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "symbols_total"),
		"Total symbols received", nil, nil)
	maskedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "symbols_masked_total"),
		"Symbols with bits set above the spreading factor", nil, nil)
	droppedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "symbols_dropped_total"),
		"Symbols discarded as part of an incomplete interleaver block", nil, nil)
	codewordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "codewords_total"),
		"Total Hamming codewords decoded", nil, nil)
	correctedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "codewords_corrected_total"),
		"Codewords repaired by single bit correction", nil, nil)
	uncorrectableDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "codewords_uncorrectable_total"),
		"Codewords with a nonzero syndrome left as received", nil, nil)
	forcedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "codewords_forced_total"),
		"Header codewords forced to all zeros or all ones", []string{"value"}, nil)
	nibblesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "nibbles_total"),
		"Total nibbles produced", nil, nil)
)

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- packetsDesc
	ch <- rejectedDesc
	ch <- symbolsDesc
	ch <- maskedDesc
	ch <- droppedDesc
	ch <- codewordsDesc
	ch <- correctedDesc
	ch <- uncorrectableDesc
	ch <- forcedDesc
	ch <- nibblesDesc
	c.latency.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()

	for cfg, n := range s.ByConfig {
		ch <- prometheus.MustNewConstMetric(packetsDesc, prometheus.CounterValue, float64(n), cfg)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(rejectedDesc, s.Rejected)
	counter(symbolsDesc, s.Symbols)
	counter(maskedDesc, s.MaskedSymbols)
	counter(droppedDesc, s.DroppedSymbols)
	counter(codewordsDesc, s.Codewords)
	counter(correctedDesc, s.Corrected)
	counter(uncorrectableDesc, s.Uncorrectable)
	counter(forcedDesc, s.ForcedZero, "zero")
	counter(forcedDesc, s.ForcedOnes, "ones")
	counter(nibblesDesc, s.Nibbles)

	c.latency.Collect(ch)
}

// NewRegistry returns a registry exposing the collector plus Go runtime metrics
func NewRegistry(collector *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector, collectors.NewGoCollector())
	return reg
}

// NewPrometheusHandler creates the HTTP handler serving the collector's metrics
func NewPrometheusHandler(collector *Collector) http.Handler {
	return promhttp.HandlerFor(NewRegistry(collector), promhttp.HandlerOpts{})
}

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server and blocks until ctx is done
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, NewPrometheusHandler(s.collector))

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}
