package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/config"
	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/logger"
	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/dbehnke/lora-nexus/pkg/metrics"
)

// Server represents the web dashboard HTTP server
type Server struct {
	config    config.WebConfig
	logger    *logger.Logger
	server    *http.Server
	hub       *WebSocketHub
	api       *API
	collector *metrics.Collector
	addr      string
	mu        sync.RWMutex
}

// NewServer creates a new web server instance. repo may be nil.
func NewServer(cfg config.WebConfig, defaults lora.Config, collector *metrics.Collector, repo *database.DecodeRepository, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Server{
		config:    cfg,
		logger:    log.WithComponent("web"),
		hub:       NewWebSocketHub(log),
		api:       NewAPI(defaults, collector, repo, log),
		collector: collector,
	}
}

// Handler builds the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/status", s.api.HandleStatus)
	mux.HandleFunc("/api/stats", s.api.HandleStats)
	mux.HandleFunc("/api/decodes", s.api.HandleDecodes)
	mux.HandleFunc("/api/decodes/", s.api.HandleDecodes)

	mux.Handle("/metrics", metrics.NewPrometheusHandler(s.collector))

	mux.Handle("/ws", s.hub.Handler())

	return mux
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Web server is disabled")
		return nil
	}

	go s.hub.Run(ctx)

	interval := s.config.StatsInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go s.hub.PublishStats(ctx, s.collector, interval)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Listen first to learn the actual address (port 0 in tests)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("Starting web server",
		logger.String("address", listener.Addr().String()),
		logger.Duration("stats_interval", interval))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// SetStatus updates the state shown by /api/status and pushes it to
// connected dashboards
func (s *Server) SetStatus(state string) {
	s.api.SetState(state)
	version, _, _ := GetVersionInfo()
	s.hub.BroadcastStatusUpdate(state, version)
	s.logger.Debug("Service state changed", logger.String("state", state))
}

// GetAddr returns the address the server is listening on
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *WebSocketHub {
	return s.hub
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": Service,
		"time":    time.Now().Unix(),
	}); err != nil {
		s.logger.Warn("Failed to encode health response", logger.Error(err))
	}
}
