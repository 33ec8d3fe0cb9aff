package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports dependency status.
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "UP"
	code := http.StatusOK
	details := gin.H{}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			details[check.Name] = err.Error()
			status = "DOWN"
			code = http.StatusServiceUnavailable
			continue
		}
		details[check.Name] = "UP"
	}

	c.JSON(code, gin.H{"status": status, "checks": details})
}
