package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/logger"
	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/dbehnke/lora-nexus/pkg/metrics"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 25
	maxPageSize     = 500
)

// Service states reported by /api/status and status_update events
const (
	StateRunning  = "running"
	StateDecoding = "decoding"
	StateServing  = "serving"
)

// API handles REST API endpoints
type API struct {
	logger    *logger.Logger
	defaults  lora.Config
	collector *metrics.Collector
	repo      *database.DecodeRepository
	started   time.Time

	mu    sync.RWMutex
	state string
}

// NewAPI creates a new API instance. repo may be nil when decode history
// is disabled.
func NewAPI(defaults lora.Config, collector *metrics.Collector, repo *database.DecodeRepository, log *logger.Logger) *API {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &API{
		logger:    log.WithComponent("web.api"),
		defaults:  defaults,
		collector: collector,
		repo:      repo,
		started:   time.Now(),
		state:     StateRunning,
	}
}

// SetState records what the service is doing, e.g. StateDecoding
func (a *API) SetState(state string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

// State returns the current service state
func (a *API) State() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version, commit, buildTime := GetVersionInfo()
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         a.State(),
		"service":        Service,
		"version":        version,
		"commit":         commit,
		"build_time":     buildTime,
		"uptime_seconds": int64(time.Since(a.started).Seconds()),
		"decoder":        a.defaults,
		"history":        a.repo != nil,
	})
}

// HandleStats handles the /api/stats endpoint
func (a *API) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.writeJSON(w, http.StatusOK, a.collector.Snapshot())
}

// HandleDecodes handles /api/decodes (paginated history) and
// /api/decodes/{uuid} (one record)
func (a *API) HandleDecodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.repo == nil {
		http.Error(w, "decode history disabled", http.StatusServiceUnavailable)
		return
	}

	if id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/decodes"), "/"); id != "" {
		a.handleDecode(w, r, id)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	perPage, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || perPage < 1 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	records, total, err := a.repo.GetRecentPaginated(r.Context(), page, perPage)
	if err != nil {
		a.logger.Error("Failed to load decode history", logger.Error(err))
		http.Error(w, "failed to load decode history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []database.DecodeRecord{}
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decodes": records,
		"total":   total,
		"page":    page,
		"limit":   perPage,
	})
}

func (a *API) handleDecode(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := a.repo.GetByUUID(r.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "decode not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("Failed to load decode", logger.String("id", id), logger.Error(err))
		http.Error(w, "failed to load decode", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
