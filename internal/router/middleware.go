package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/authz"
	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	opshandlers "github.com/Performile1/Performile-Version-1-sub001/internal/http/handlers/ops"
	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey       = "request_id"
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
)

// CORSMiddleware 跨域中间件，仅挂在运维接口上；webhook 为服务端推送，不需要跨域
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "Authorization", requestIDHeader}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 透传或生成 X-Request-ID
// 外部传入的值只接受可打印 ASCII 且不超过 64 字符，避免污染日志
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// LoggerMiddleware 访问日志，按响应状态分级；skipPaths 中的路径（健康检查、指标）不记录
func LoggerMiddleware(base *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	if base == nil {
		base = zap.L()
	}
	sugar := base.Sugar()
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}
		status := c.Writer.Status()
		kv := []interface{}{
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			sugar.Errorw("http_request", kv...)
		case status >= 400:
			sugar.Warnw("http_request", kv...)
		default:
			sugar.Infow("http_request", kv...)
		}
	}
}

func getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// bearerToken 解析 Authorization 头，scheme 不区分大小写
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// OpsJWTAuthMiddleware 运维令牌鉴权中间件
func OpsJWTAuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			response.Unauthorized(c, "auth service unavailable")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "authorization header missing")
			c.Abort()
			return
		}
		token, ok := bearerToken(authHeader)
		if !ok {
			response.Unauthorized(c, "authorization header must be Bearer token")
			c.Abort()
			return
		}

		claims, err := authService.ParseJWT(token)
		if err != nil || claims.OperatorID == 0 {
			response.Unauthorized(c, "token invalid")
			c.Abort()
			return
		}

		// 角色以账号当前状态为准，令牌中的角色仅供展示
		state, err := authService.ResolveOperatorState(c.Request.Context(), claims.OperatorID)
		if err != nil {
			if !service.IsAuthError(err) {
				logger.Errorw("ops_operator_state_failed", "operator_id", claims.OperatorID, "error", err)
			}
			response.Unauthorized(c, "token invalid")
			c.Abort()
			return
		}

		c.Set(opshandlers.ContextOperatorID, state.OperatorID)
		c.Set(opshandlers.ContextUsername, state.Username)
		c.Set(opshandlers.ContextRole, state.Role)
		c.Next()
	}
}

// OpsRBACMiddleware 运维接口 RBAC 鉴权中间件
func OpsRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("ops_rbac_service_unavailable")
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		role := strings.TrimSpace(c.GetString(opshandlers.ContextRole))
		if role == "" {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceRole(role, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("ops_rbac_enforce_failed",
				"role", role,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("ops_rbac_permission_denied",
				"operator_id", c.GetUint(opshandlers.ContextOperatorID),
				"role", role,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}

		c.Next()
	}
}
