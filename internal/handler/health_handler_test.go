package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/service"
)

func TestHealthHandlerReady(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	h := NewHealthHandler(map[string]Pinger{"postgres": up, "redis": up}, nil, nil)
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)

	h = NewHealthHandler(map[string]Pinger{"postgres": up, "redis": down}, nil, nil)
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}

func TestHealthHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordOverdue(2)
	h := NewHealthHandler(nil, metrics, nil)

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sgt_expedientes_marked_overdue_total 2")

	c, w = newGinContext(http.MethodGet, "/metrics/system", nil)
	h.System(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"overdue_marked":2`)
}
