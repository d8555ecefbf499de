package provider

import (
	"github.com/Performile1/Performile-Version-1-sub001/internal/authz"
	"github.com/Performile1/Performile-Version-1-sub001/internal/cache"
	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/queue"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"
	"github.com/Performile1/Performile-Version-1-sub001/internal/webhook"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client

	// Repositories
	ShopRepo            repository.ShopRepository
	CourierRepo         repository.CourierRepository
	DeliveryRequestRepo repository.DeliveryRequestRepository
	ReminderTaskRepo    repository.ReminderTaskRepository
	WebhookEventRepo    repository.WebhookEventRepository
	OperatorRepo        repository.OperatorRepository

	// Webhook 组件
	Registry *webhook.Registry
	Router   *webhook.Router
	Verifier *webhook.Verifier

	// Services
	AuthzService               *authz.Service
	AuthService                *service.AuthService
	EmailService               *service.EmailService
	EmailDispatcher            service.EmailDispatcher
	CourierNotifier            service.CourierNotifier
	CourierNotificationService *service.CourierNotificationService
	AssignmentService          *service.AssignmentService
	ReviewScheduler            *service.ReviewScheduler
	LifecycleService           *service.LifecycleService
	ReminderService            *service.ReminderService
	AuditService               *service.AuditService
	WebhookService             *service.WebhookService
}

// NewContainer 使用全局数据库连接初始化容器
func NewContainer(cfg *config.Config) *Container {
	return NewContainerWithDB(cfg, models.DB)
}

// NewContainerWithDB 使用指定数据库连接初始化容器
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时返回禁用状态的客户端，调用方自动回退为同步处理
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.ShopRepo = repository.NewShopRepository(db)
	c.CourierRepo = repository.NewCourierRepository(db)
	c.DeliveryRequestRepo = repository.NewDeliveryRequestRepository(db)
	c.ReminderTaskRepo = repository.NewReminderTaskRepository(db)
	c.WebhookEventRepo = repository.NewWebhookEventRepository(db)
	c.OperatorRepo = repository.NewOperatorRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(&c.Config.Ops, c.OperatorRepo)
	c.EmailService = service.NewEmailService(&c.Config.Email)
	if c.Config.Email.Async {
		c.EmailDispatcher = service.NewQueuedEmailDispatcher(c.QueueClient, c.EmailService)
	} else {
		c.EmailDispatcher = c.EmailService
	}

	// 骑手通知：入队后由 worker 投递到 Redis 频道；队列关闭时直接发布
	redisNotifier := service.NewRedisCourierNotifier()
	c.CourierNotifier = service.NewQueuedCourierNotifier(c.QueueClient, redisNotifier)
	c.CourierNotificationService = service.NewCourierNotificationService(c.DeliveryRequestRepo, redisNotifier)

	c.Registry = webhook.NewRegistry()
	c.Router = webhook.NewRouter()
	c.Verifier = webhook.NewVerifier(c.Config.Webhook.StripeTolerance())

	c.AssignmentService = service.NewAssignmentService(&c.Config.Assignment, c.DeliveryRequestRepo, c.CourierRepo, c.CourierNotifier)
	c.ReviewScheduler = service.NewReviewScheduler(&c.Config.Review, c.DeliveryRequestRepo, c.ReminderTaskRepo, c.EmailDispatcher)
	c.LifecycleService = service.NewLifecycleService(
		c.Config,
		c.DeliveryRequestRepo,
		c.CourierRepo,
		c.ShopRepo,
		c.ReminderTaskRepo,
		c.AssignmentService,
		c.ReviewScheduler,
	)
	c.ReminderService = service.NewReminderService(&c.Config.Review, c.DeliveryRequestRepo, c.ReminderTaskRepo, c.ReviewScheduler, c.EmailDispatcher)
	c.AuditService = service.NewAuditService(c.WebhookEventRepo)
	c.WebhookService = service.NewWebhookService(
		c.Config,
		c.Registry,
		c.Router,
		c.Verifier,
		c.ShopRepo,
		c.LifecycleService,
		c.AuditService,
	)
}

// Close 释放容器持有的外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
