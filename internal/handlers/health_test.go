package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	tests := []struct {
		name   string
		checks []HealthCheck
		code   int
		status string
	}{
		{"no checks", nil, http.StatusOK, "UP"},
		{"all up", []HealthCheck{ok}, http.StatusOK, "UP"},
		{"one down", []HealthCheck{ok, down}, http.StatusServiceUnavailable, "DOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tt.checks...).Health)

			w := doJSON(t, r, http.MethodGet, "/health", nil)
			require.Equal(t, tt.code, w.Code)

			var body healthBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}
