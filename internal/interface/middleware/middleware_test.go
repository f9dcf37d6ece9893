package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newLimitedRouter(t *testing.T, max int, allow AllowFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RequestIDMiddleware(), RealIP())
	r.POST("/api/registration", RateLimit(rdb, max, time.Minute, KeyByIPAndPath(), allow), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})
	return r, mr
}

func post(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/registration", nil)
	req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BlocksAfterMax(t *testing.T) {
	r, mr := newLimitedRouter(t, 2, nil)

	assert.Equal(t, http.StatusOK, post(r, "203.0.113.7").Code)
	w := post(r, "203.0.113.7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = post(r, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"rate_limited"`)

	assert.Equal(t, http.StatusOK, post(r, "198.51.100.2").Code, "limits are per client ip")
	assert.True(t, mr.Exists("rl:path:/api/registration:ip:203.0.113.7"))
}

func TestRateLimit_AllowBypass(t *testing.T) {
	r, _ := newLimitedRouter(t, 1, AllowPrivateIP())
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(r, "192.168.1.10").Code)
	}
	post(r, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, post(r, "203.0.113.7").Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r, mr := newLimitedRouter(t, 1, nil)
	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(r, "203.0.113.7").Code)
	}
}

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.POST("/x", RateLimit(nil, 1, time.Minute, KeyByIP(), nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRealIPAndRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), RealIP())
	var ip, rid string
	r.GET("/", func(c *gin.Context) {
		ip = c.GetString("real_ip")
		rid = c.GetString("request_id")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-Connecting-IP", "203.0.113.9")
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", ip)
	require.Len(t, rid, 36)
}

func TestRequestID_KeepsTrustedUpstreamID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "edge-4f2a9c01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "edge-4f2a9c01", w.Body.String())
	assert.Equal(t, "edge-4f2a9c01", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36)
}

func TestRealIP_HeaderOrder(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"x-real-ip", map[string]string{"X-Real-IP": "198.51.100.4", "X-Forwarded-For": "198.51.100.1"}, "198.51.100.4"},
		{"left-most forwarded", map[string]string{"X-Forwarded-For": " 198.51.100.1 , 10.0.0.2"}, "198.51.100.1"},
		{"garbage skipped", map[string]string{"CF-Connecting-IP": "nope", "X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"ipv4 mapped", map[string]string{"X-Real-IP": "::ffff:203.0.113.5"}, "203.0.113.5"},
		{"socket fallback", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RealIP())
			var got string
			r.GET("/", func(c *gin.Context) { got = c.GetString(RealIPKey) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowCIDRs(t *testing.T) {
	allow, err := AllowCIDRs([]string{"203.0.113.0/24", " 2001:db8::/32"})
	require.NoError(t, err)

	r, _ := newLimitedRouter(t, 1, allow)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(r, "203.0.113.7").Code)
	}
	post(r, "198.51.100.2")
	assert.Equal(t, http.StatusTooManyRequests, post(r, "198.51.100.2").Code)

	none, err := AllowCIDRs(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = AllowCIDRs([]string{"10.0.0.0/33"})
	assert.ErrorContains(t, err, "10.0.0.0/33")
}
