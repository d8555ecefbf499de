package constants

// 配送请求状态常量
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusAssigned  = "assigned"
	DeliveryStatusCompleted = "completed"
	DeliveryStatusCancelled = "cancelled"
)

// TerminalDeliveryStatuses 终态集合，进入后不可再迁移
var TerminalDeliveryStatuses = []string{
	DeliveryStatusCompleted,
	DeliveryStatusCancelled,
}

// Webhook 审计状态常量
const (
	WebhookEventStatusSuccess = "success"
	WebhookEventStatusFailed  = "failed"
	WebhookEventStatusError   = "error"
)

// 提醒任务状态常量
const (
	ReminderStatusPending   = "pending"
	ReminderStatusSent      = "sent"
	ReminderStatusCancelled = "cancelled"
)

// Webhook 提供方常量
const (
	ProviderShopify     = "shopify"
	ProviderWooCommerce = "woocommerce"
	ProviderStripe      = "stripe"
	ProviderMagento     = "magento"
	ProviderPrestaShop  = "prestashop"
	ProviderOpenCart    = "opencart"
	ProviderWix         = "wix"
	ProviderSquarespace = "squarespace"
	ProviderExternal    = "external"
)

// 分配结果常量（用于指标与日志）
const (
	AssignmentResultAssigned    = "assigned"
	AssignmentResultNoCandidate = "no_candidate"
	AssignmentResultLostRace    = "lost_race"
	AssignmentResultSkipped     = "skipped"
	AssignmentResultError       = "error"
)

// 运维角色常量
const (
	OperatorRoleAuditor  = "auditor"
	OperatorRoleOperator = "operator"
)

// 队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskReviewRequestEmail      = "email:review_request"
	TaskCourierAssignmentNotify = "courier:assignment_notify"
	TaskReminderSweep           = "reminder:sweep"
)
