package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/middleware"
)

type fakeDashboardSrv struct {
	resp *dto.DashboardSummary
	hit  bool
	err  error
}

func (f *fakeDashboardSrv) Summary(context.Context) (*dto.DashboardSummary, bool, error) {
	return f.resp, f.hit, f.err
}

func TestDashboardHandlerReportsCacheHit(t *testing.T) {
	for _, hit := range []bool{true, false} {
		h := NewDashboardHandler(&fakeDashboardSrv{resp: &dto.DashboardSummary{Total: 7, Open: 5}, hit: hit})

		c, w := newGinContext(http.MethodGet, "/dashboard", nil)
		middleware.WithResponseMeta()(c)
		h.Summary(c)

		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.Equal(t, hit, env.Meta["cache_hit"])
		assert.Contains(t, env.Meta, "processing_time_ms")

		var summary dto.DashboardSummary
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Equal(t, 7, summary.Total)
	}
}

func TestDashboardHandlerNilService(t *testing.T) {
	h := NewDashboardHandler(nil)
	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	h.Summary(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
