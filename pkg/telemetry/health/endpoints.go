package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"mercator-hq/procmetrics/pkg/config"
)

// VersionPath serves VersionInfo next to the probe endpoints.
const VersionPath = "/version"

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version" yaml:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit" yaml:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time" yaml:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// NewVersionInfo fills GoVersion from the running binary.
func NewVersionInfo(version, commit, buildTime string) VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// Endpoint is a health path and its handler.
type Endpoint struct {
	Path    string
	Handler http.Handler
}

// Endpoints returns the liveness, readiness and version endpoints at the
// paths of cfg. It returns nil when health checks are disabled.
func (c *Checker) Endpoints(cfg config.HealthConfig, info VersionInfo) []Endpoint {
	if !cfg.Enabled {
		return nil
	}
	return []Endpoint{
		{Path: cfg.LivenessPath, Handler: c.LivenessHandler()},
		{Path: cfg.ReadinessPath, Handler: c.ReadinessHandler()},
		{Path: VersionPath, Handler: VersionHandler(info)},
	}
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-03-02T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
// It answers 200 when every registered check passes and 503 otherwise.
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "multiproc_dir": {"status": "unhealthy", "message": "multiprocess storage unavailable: ..."}
//	    },
//	    "timestamp": "2026-03-02T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}

		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler serving info.
func VersionHandler(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
