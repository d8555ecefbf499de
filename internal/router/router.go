package router

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/authz"
	"github.com/Performile1/Performile-Version-1-sub001/internal/cache"
	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	ingesthandlers "github.com/Performile1/Performile-Version-1-sub001/internal/http/handlers/ingest"
	opshandlers "github.com/Performile1/Performile-Version-1-sub001/internal/http/handlers/ops"
	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/metrics"
	"github.com/Performile1/Performile-Version-1-sub001/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const opsPathPrefix = "/api/v1/ops/"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（入站 / 运维分组）
	ingestHandler := ingesthandlers.New(c)
	opsHandler := opshandlers.New(c)
	loginRule := RateLimitRule{
		Prefix:        cache.Key("rate:ops_login"),
		WindowSeconds: cfg.Ops.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Ops.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts",
	}

	// 中间件
	metricsPath := strings.TrimSpace(cfg.Metrics.Path)
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log, "/health", metricsPath))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 提供方推送入口，鉴权由签名完成
		apiV1.POST("/webhooks/:provider", ingestHandler.ReceiveWebhook)

		// 运维接口
		ops := apiV1.Group("/ops")
		ops.Use(CORSMiddleware(cfg.CORS))
		{
			// 预检请求由 CORS 中间件直接应答
			ops.OPTIONS("/*path", func(*gin.Context) {})

			// 登录接口（无需鉴权）
			ops.POST("/login", RateLimitMiddleware(cache.Client(), loginRule, KeyByIPAndJSONField("username")), opsHandler.Login)

			// 需要鉴权的接口
			authorized := ops.Group("")
			authorized.Use(OpsJWTAuthMiddleware(c.AuthService), OpsRBACMiddleware(c.AuthzService))
			{
				authorized.GET("/me", opsHandler.Me)
				authorized.GET("/roles", opsHandler.ListRoles)
				authorized.GET("/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildOpsPermissionCatalog(r))
				})

				// 审计日志
				authorized.GET("/webhook-events", opsHandler.ListWebhookEvents)
				authorized.GET("/webhook-events/stats", opsHandler.WebhookEventStats)
				authorized.GET("/webhook-events/:id", opsHandler.GetWebhookEvent)
				authorized.POST("/webhook-events/:id/replay", opsHandler.ReplayWebhookEvent)

				// 提醒扫描
				authorized.POST("/reminders/sweep", opsHandler.SweepReminders)
			}
		}
	}

	// 指标
	if cfg.Metrics.Enabled {
		metrics.Register()
		r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}

	// 健康检查
	r.GET("/health", healthHandler(c.DB))

	return r
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": "unavailable"})
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			logger.Warnw("health_db_ping_failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": err.Error()})
			return
		}
		// Redis 为可选依赖，异常只降级不判定宕机
		body := gin.H{"status": "ok", "database": "ok"}
		if cache.Enabled() {
			body["redis"] = "ok"
			if err := cache.Ping(ctx); err != nil {
				logger.Warnw("health_redis_ping_failed", "error", err)
				body["status"] = "degraded"
				body["redis"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

type opsPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildOpsPermissionCatalog(engine *gin.Engine) []opsPermissionCatalogItem {
	if engine == nil {
		return []opsPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]opsPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, opsPathPrefix) {
			continue
		}
		if item.Path == opsPathPrefix+"login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, opsPermissionCatalogItem{
			Module:     deriveOpsPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveOpsPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "ops" {
		return segments[0]
	}
	return segments[1]
}
