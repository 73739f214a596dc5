package cors

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sgt/sgt-api/pkg/config"
)

const (
	allowHeaders  = "Authorization, Content-Type, X-Request-ID"
	allowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	exposeHeaders = "X-Request-ID, Content-Disposition"
)

// originMatcher holds exact origins and "*.domain" suffix patterns.
type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{any: len(origins) == 0, exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimRight(origin, "/"))
		switch {
		case origin == "*":
			m.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*.")
			m.suffixes = append(m.suffixes, scheme+"://|."+host)
		case origin != "":
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, pattern := range m.suffixes {
		scheme, domain, _ := strings.Cut(pattern, "|")
		if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, domain) {
			return true
		}
	}
	return false
}

// New returns the CORS middleware. Without configured origins every origin
// is accepted but credentials are never advertised, so browsers cannot send
// cookies or auth headers cross-site in that mode. Preflights from unknown
// origins are answered with 403.
func New(cfg config.CORSConfig) gin.HandlerFunc {
	matcher := newOriginMatcher(cfg.AllowedOrigins)
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""

		switch {
		case origin == "":
		case matcher.allows(origin):
			header.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		case matcher.any:
			header.Set("Access-Control-Allow-Origin", "*")
		case preflight:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		header.Set("Access-Control-Expose-Headers", exposeHeaders)
		if preflight {
			header.Set("Access-Control-Allow-Headers", allowHeaders)
			header.Set("Access-Control-Allow-Methods", allowMethods)
			if cfg.MaxAge > 0 {
				header.Set("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
