package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Component names reported by the control plane
const (
	ComponentPipeline = "pipeline"
	ComponentWatcher  = "watcher"
	ComponentXDS      = "xds"
	ComponentStorage  = "storage"
)

// HealthStatus represents the health status of the control plane
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "unhealthy", "ready", "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth tracks the health of a single component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker manages health checks for the running components
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   []string
	startTime  time.Time
	version    string
}

func newHealthChecker() *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		critical:   []string{ComponentPipeline, ComponentXDS},
		startTime:  time.Now(),
	}
}

var healthChecker = newHealthChecker()

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// SetCriticalComponents replaces the components readiness waits for
func SetCriticalComponents(names ...string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.critical = append([]string(nil), names...)
}

// UpdateComponent records the health of a component
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// GetHealth reports unhealthy when any registered component is
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	names := make([]string, 0, len(healthChecker.components))
	for name := range healthChecker.components {
		names = append(names, name)
	}
	return healthChecker.summarize(names, "healthy", "unhealthy", "unhealthy")
}

// GetReadiness reports ready once every critical component is healthy.
// The pipeline only turns healthy after its first successful build.
func GetReadiness() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()
	return healthChecker.summarize(healthChecker.critical, "ready", "not_ready", "not ready")
}

// summarize folds the named components into one status. Callers hold mu.
func (h *HealthChecker) summarize(names []string, good, bad, badDetail string) HealthStatus {
	out := HealthStatus{
		Status:     good,
		Timestamp:  time.Now(),
		Components: make(map[string]string, len(names)),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}

	var waiting []string
	for _, name := range names {
		comp, exists := h.components[name]
		switch {
		case !exists:
			out.Components[name] = "not registered"
		case !comp.Healthy:
			out.Components[name] = badDetail + ": " + comp.Message
		default:
			out.Components[name] = good
			continue
		}
		out.Status = bad
		waiting = append(waiting, name)
	}

	if len(waiting) > 0 {
		sort.Strings(waiting)
		out.Message = "waiting for " + waiting[0]
	}
	return out
}

// HealthHandler serves GetHealth, 503 when unhealthy
func HealthHandler() http.HandlerFunc {
	return statusHandler(GetHealth, "healthy")
}

// ReadyHandler serves GetReadiness, 503 until ready
func ReadyHandler() http.HandlerFunc {
	return statusHandler(GetReadiness, "ready")
}

func statusHandler(get func() HealthStatus, good string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := get()
		code := http.StatusOK
		if st.Status != good {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, st)
	}
}

// LivenessHandler returns 200 while the process is running
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
