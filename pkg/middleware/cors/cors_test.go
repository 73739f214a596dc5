package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/estudio-sgt/sgt-api/pkg/config"
)

func newRouter(cfg config.CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	r := newRouter(config.CORSConfig{AllowedOrigins: []string{"https://sgt.example.com/"}, AllowCredentials: true})

	w := request(r, http.MethodGet, "https://sgt.example.com", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://sgt.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	w = request(r, http.MethodGet, "https://evil.example.com", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSSubdomainPattern(t *testing.T) {
	r := newRouter(config.CORSConfig{AllowedOrigins: []string{"https://*.estudio.com.ar"}})

	w := request(r, http.MethodGet, "https://panel.estudio.com.ar", false)
	assert.Equal(t, "https://panel.estudio.com.ar", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(r, http.MethodGet, "http://panel.estudio.com.ar", false)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = request(r, http.MethodGet, "https://estudio.com.ar.evil.io", false)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(config.CORSConfig{AllowedOrigins: []string{"https://sgt.example.com"}, MaxAge: 10 * time.Minute})

	w := request(r, http.MethodOptions, "https://sgt.example.com", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	w = request(r, http.MethodOptions, "https://evil.example.com", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSOpenModeNeverSendsCredentials(t *testing.T) {
	r := newRouter(config.CORSConfig{AllowCredentials: true})

	w := request(r, http.MethodGet, "https://anywhere.example.com", false)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}
