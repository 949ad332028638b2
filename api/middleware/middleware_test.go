package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/sigillum/config"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(identityKey)) })
	return r
}

func do(r http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		allowQuery bool
		target     string
		header     map[string]string
		want       int
	}{
		{"missing key", false, "/x", nil, http.StatusUnauthorized},
		{"header key", false, "/x", map[string]string{"X-API-Key": "k2"}, http.StatusOK},
		{"bearer key", false, "/x", map[string]string{"Authorization": "Bearer k1"}, http.StatusOK},
		{"wrong key", false, "/x", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"query key allowed", true, "/x?api_key=k1", nil, http.StatusOK},
		{"query key refused", false, "/x?api_key=k1", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(Auth([]string{"k1", "k2", ""}, tt.allowQuery))
			w := do(r, tt.target, tt.header)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth(nil, false))
	assert.Equal(t, http.StatusOK, do(r, "/x", nil).Code)
}

func TestRateLimit(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer l.Close()
	r := newEngine(Auth([]string{"a", "b"}, false), l.Middleware())

	a := map[string]string{"X-API-Key": "a"}
	assert.Equal(t, http.StatusOK, do(r, "/x", a).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", a).Code)

	w := do(r, "/x", a)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMITED"`)

	// Buckets are per identity.
	assert.Equal(t, http.StatusOK, do(r, "/x", map[string]string{"X-API-Key": "b"}).Code)
}
