package health

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns an HTTP handler that reports the process is alive.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-10-17T10:30:00Z"
//	}
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"status":    StatusOK,
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler returns an HTTP handler serving the monitor's latest
// snapshot. It never probes; results come from the schedule.
//
// Returns:
//   - 200 OK: every provider passed, or nothing was probed yet
//   - 503 Service Unavailable: at least one provider failed
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "providers": {
//	        "openai": {"healthy": true, "checked_at": "..."},
//	        "local": {"healthy": false, "consecutive_failures": 3, "checked_at": "..."}
//	    },
//	    "checked_at": "2026-10-17T10:30:00Z"
//	}
func (m *Monitor) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}

		snap := m.Snapshot()

		status := http.StatusOK
		if snap.Status == StatusDegraded || snap.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, r, status, snap)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

// RegisterHandlers adds the standard health paths to mux:
//   - /health: Liveness probe
//   - /ready: Provider readiness from the latest snapshot
//   - /version: Version information
//
// Usage:
//
//	mux := http.NewServeMux()
//	monitor.RegisterHandlers(mux, "1.0.0", "abc123", "2026-10-17")
func (m *Monitor) RegisterHandlers(mux *http.ServeMux, version, commit, buildTime string) {
	mux.HandleFunc("/health", LivenessHandler())
	mux.HandleFunc("/ready", m.ReadinessHandler())
	mux.HandleFunc("/version", VersionHandler(version, commit, buildTime))
}

// allowed accepts GET and HEAD only.
func allowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
