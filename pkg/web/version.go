package web

import "sync"

// Service is the name reported by /health and /api/status
const Service = "lora-nexus"

// buildInfo describes the running binary; cmd/lora-nexus fills it from
// its link-time variables
type buildInfo struct {
	mu        sync.RWMutex
	version   string
	commit    string
	buildTime string
}

var build = &buildInfo{version: "dev", commit: "unknown", buildTime: "unknown"}

// SetVersionInfo records the binary version exposed by the API and status events
func SetVersionInfo(version, commit, buildTime string) {
	build.mu.Lock()
	defer build.mu.Unlock()
	build.version = version
	build.commit = commit
	build.buildTime = buildTime
}

// GetVersionInfo returns version, commit and build time
func GetVersionInfo() (string, string, string) {
	build.mu.RLock()
	defer build.mu.RUnlock()
	return build.version, build.commit, build.buildTime
}
