package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status values reported by a Checker
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// HealthStatus is the JSON body of the health endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

type component struct {
	healthy bool
	message string
	updated time.Time
}

// Checker tracks the health of the components of the planning service.
// The service is ready once every critical component reports healthy.
type Checker struct {
	mu         sync.RWMutex
	components map[string]component
	critical   []string
	startTime  time.Time
	version    string
}

// NewChecker creates a checker waiting for the given critical components
func NewChecker(version string, critical ...string) *Checker {
	return &Checker{
		components: make(map[string]component),
		critical:   critical,
		startTime:  time.Now(),
		version:    version,
	}
}

// Set records the health of a component
func (c *Checker) Set(name string, healthy bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{healthy: healthy, message: message, updated: time.Now()}
}

// Health returns the overall health: unhealthy as soon as one component is
func (c *Checker) Health() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.status(StatusHealthy)
	for name, comp := range c.components {
		if !comp.healthy {
			st.Status = StatusUnhealthy
			st.Components[name] = "unhealthy: " + comp.message
		} else {
			st.Components[name] = StatusHealthy
		}
	}
	return st
}

// Readiness reports whether every critical component is registered and
// healthy
func (c *Checker) Readiness() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.status(StatusReady)
	critical := append([]string(nil), c.critical...)
	sort.Strings(critical)
	for _, name := range critical {
		comp, ok := c.components[name]
		switch {
		case !ok:
			st.Status = StatusNotReady
			st.Message = "waiting for " + name + " initialization"
			st.Components[name] = "not registered"
		case !comp.healthy:
			st.Status = StatusNotReady
			st.Message = "waiting for " + name
			st.Components[name] = "not ready: " + comp.message
		default:
			st.Components[name] = StatusReady
		}
	}
	return st
}

func (c *Checker) status(s string) HealthStatus {
	return HealthStatus{
		Status:     s,
		Timestamp:  time.Now(),
		Components: make(map[string]string),
		Version:    c.version,
		Uptime:     time.Since(c.startTime).String(),
	}
}

// HealthHandler serves Health, with a 503 when unhealthy
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := c.Health()
		writeStatus(w, st, st.Status == StatusHealthy)
	}
}

// ReadyHandler serves Readiness, with a 503 when not ready
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := c.Readiness()
		writeStatus(w, st, st.Status == StatusReady)
	}
}

// LivenessHandler always answers 200 while the process runs
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(c.startTime).String(),
		})
	}
}

func writeStatus(w http.ResponseWriter, st HealthStatus, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(st)
}
