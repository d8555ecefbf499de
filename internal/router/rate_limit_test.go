package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByIPAndJSONFieldRestoresBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/ops/login", strings.NewReader(`{"username":" Ops-Admin ","password":"x"}`))
	c.Request.RemoteAddr = "10.0.0.8:5678"

	if key := KeyByIPAndJSONField("username")(c); key != "ops-admin|10.0.0.8" {
		t.Fatalf("unexpected key: %s", key)
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !strings.Contains(string(body), "Ops-Admin") {
		t.Fatalf("request body should be restored, got %q err=%v", string(body), err)
	}
}

func TestKeyByIPAndJSONFieldFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []string{``, `not json`, `{"username":42}`, `{"other":"x"}`}
	for _, raw := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/ops/login", strings.NewReader(raw))
		c.Request.RemoteAddr = "10.0.0.9:1"
		if key := KeyByIPAndJSONField("username")(c); key != "10.0.0.9" {
			t.Fatalf("body %q should fall back to ip, got %s", raw, key)
		}
	}
}

func TestRateLimitMiddlewarePassesWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{Prefix: "wh:rate:test", WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK || w.Body.String() != "pong" {
			t.Fatalf("request %d should pass, got %d %s", i, w.Code, w.Body.String())
		}
	}
}

func TestRateLimitRuleHelpers(t *testing.T) {
	rule := RateLimitRule{Prefix: "wh:rate:ops_login", WindowSeconds: 60, MaxRequests: 5}
	if !rule.enabled() || (RateLimitRule{WindowSeconds: 60}).enabled() {
		t.Fatalf("enabled should require window and max")
	}
	if got := rule.key("ops|1.2.3.4"); got != "wh:rate:ops_login:ops|1.2.3.4" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := (RateLimitRule{}).key("1.2.3.4"); got != "1.2.3.4" {
		t.Fatalf("empty prefix key: %s", got)
	}
	if got := retryAfterSeconds(12*time.Second, 60); got != 12 {
		t.Fatalf("retry after from ttl want 12 got %d", got)
	}
	if got := retryAfterSeconds(-time.Second, 60); got != 60 {
		t.Fatalf("retry after fallback want 60 got %d", got)
	}
	if got := retryAfterSeconds(0, 0); got != 1 {
		t.Fatalf("retry after floor want 1 got %d", got)
	}
}
