package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/your-org/cityinfo/internal/domain"
)

// HealthReporter contributes a named block of details to the health body
type HealthReporter interface {
	HealthDetails() map[string]interface{}
}

// HealthReporterFunc adapts a function to HealthReporter
type HealthReporterFunc func() map[string]interface{}

// HealthDetails calls f
func (f HealthReporterFunc) HealthDetails() map[string]interface{} {
	return f()
}

// HealthHandler reports whether the service can reach its store
type HealthHandler struct {
	checker   domain.HealthChecker
	driver    string
	reporters map[string]HealthReporter
}

// NewHealthHandler creates a health handler for the configured storage driver.
// When the checker also implements HealthReporter its details are reported
// under "storage_details".
func NewHealthHandler(checker domain.HealthChecker, driver string) *HealthHandler {
	h := &HealthHandler{
		checker:   checker,
		driver:    driver,
		reporters: make(map[string]HealthReporter),
	}
	if reporter, ok := checker.(HealthReporter); ok {
		h.reporters["storage_details"] = reporter
	}
	return h
}

// WithReporter adds a named details block
func (h *HealthHandler) WithReporter(name string, reporter HealthReporter) *HealthHandler {
	h.reporters[name] = reporter
	return h
}

// ServeHTTP handles GET /health. No middleware runs in front of it.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "ok",
		"storage":   h.driver,
		"timestamp": time.Now().Unix(),
	}
	status := http.StatusOK

	if h.checker != nil {
		if err := h.checker.CheckConnection(ctx); err != nil {
			status = http.StatusServiceUnavailable
			health["status"] = "unhealthy"
			health["error"] = err.Error()
		} else {
			health["database"] = "connected"
		}
	}

	for name, reporter := range h.reporters {
		health[name] = reporter.HealthDetails()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(health)
}
