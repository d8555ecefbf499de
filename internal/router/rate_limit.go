package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 从请求中提取限流维度
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	Message       string
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

func (r RateLimitRule) key(dimension string) string {
	if r.Prefix == "" {
		return dimension
	}
	return r.Prefix + ":" + dimension
}

// 首次命中时设置过期，返回 {计数, 剩余秒数}
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

// windowHit 单次计数结果
type windowHit struct {
	count int64
	ttl   time.Duration
}

func hitFixedWindow(ctx context.Context, client *redis.Client, key string, window int) (windowHit, error) {
	values, err := fixedWindowScript.Run(ctx, client, []string{key}, window).Int64Slice()
	if err != nil {
		return windowHit{}, err
	}
	if len(values) < 2 {
		return windowHit{}, fmt.Errorf("unexpected rate limit reply: %v", values)
	}
	return windowHit{count: values[0], ttl: time.Duration(values[1]) * time.Second}, nil
}

// RateLimitMiddleware 基于 Redis 的固定窗口限流，未启用 Redis 时放行
// Redis 出错时拒绝请求
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || !rule.enabled() {
			c.Next()
			return
		}

		dimension := ""
		if keyFunc != nil {
			dimension = strings.TrimSpace(keyFunc(c))
		}
		if dimension == "" {
			dimension = c.ClientIP()
		}

		hit, err := hitFixedWindow(c.Request.Context(), client, rule.key(dimension), rule.WindowSeconds)
		if err != nil {
			logger.Errorw("rate_limit_check_failed", "prefix", rule.Prefix, "error", err)
			response.Error(c, response.CodeInternal, "rate limit unavailable")
			c.Abort()
			return
		}
		if hit.count <= int64(rule.MaxRequests) {
			c.Next()
			return
		}

		retryAfter := retryAfterSeconds(hit.ttl, rule.WindowSeconds)
		msg := strings.TrimSpace(rule.Message)
		if msg == "" {
			msg = "too many requests"
		}
		logger.Warnw("rate_limit_exceeded", "prefix", rule.Prefix, "count", hit.count, "retry_after", retryAfter)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("%s, retry in %d seconds", msg, retryAfter))
		c.Abort()
	}
}

func retryAfterSeconds(ttl time.Duration, window int) int {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = window
	}
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// KeyByIP 按客户端 IP 限流
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndJSONField 按 JSON 字段与 IP 组合限流，字段缺失时退化为 IP
// 读取后会还原请求体，后续 handler 可再次绑定
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(peekJSONString(c, field))
		if value == "" {
			return c.ClientIP()
		}
		return value + "|" + c.ClientIP()
	}
}

func peekJSONString(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload[field], &text); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
