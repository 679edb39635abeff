package testhelpers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/capture"
	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/logger"
	"github.com/dbehnke/lora-nexus/pkg/lora"
	"gopkg.in/yaml.v3"
)

// Suite bundles the context, logger and scratch storage tests need
type Suite struct {
	T      *testing.T
	Logger *logger.Logger
	Ctx    context.Context
	Cancel context.CancelFunc
	Dir    string
}

// NewSuite creates a suite whose context and files are released when the
// test ends
func NewSuite(t *testing.T) *Suite {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	return &Suite{
		T:      t,
		Logger: logger.New(logger.Config{Level: "error", Format: "text"}),
		Ctx:    ctx,
		Cancel: cancel,
		Dir:    t.TempDir(),
	}
}

// OpenDB opens a fresh decode history database in the suite directory
func (s *Suite) OpenDB() *database.DB {
	s.T.Helper()
	db, err := database.NewDB(database.Config{Path: filepath.Join(s.Dir, "history.db")}, s.Logger)
	if err != nil {
		s.T.Fatalf("failed to open database: %v", err)
	}
	s.T.Cleanup(func() { _ = db.Close() })
	return db
}

// Capture encodes header and payload nibbles into a capture carrying cfg
func (s *Suite) Capture(name string, cfg lora.Config, header, payload []byte) *capture.Capture {
	s.T.Helper()
	explicit := cfg.Header
	return &capture.Capture{
		Name:            name,
		SpreadingFactor: cfg.SpreadingFactor,
		CodeRate:        cfg.CodeRate,
		Header:          &explicit,
		Symbols:         s.Encode(cfg, header, payload),
	}
}

// Encode returns the symbols for one packet
func (s *Suite) Encode(cfg lora.Config, header, payload []byte) []uint16 {
	s.T.Helper()
	enc, err := lora.NewEncoder(cfg)
	if err != nil {
		s.T.Fatalf("failed to build encoder for %s: %v", cfg, err)
	}
	return enc.Encode(header, payload)
}

// WriteCapture stores c as a YAML capture file and returns its path
func (s *Suite) WriteCapture(file string, c *capture.Capture) string {
	s.T.Helper()
	data, err := yaml.Marshal(c)
	if err != nil {
		s.T.Fatalf("failed to marshal capture: %v", err)
	}
	path := filepath.Join(s.Dir, file)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.T.Fatalf("failed to write capture: %v", err)
	}
	return path
}

// WaitFor waits for a condition to be true
func (s *Suite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}
