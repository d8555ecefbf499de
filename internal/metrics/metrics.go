package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 指标
var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of inbound webhook calls by provider and audit status",
		},
		[]string{"provider", "status"},
	)

	WebhookProcessingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_seconds",
			Help:    "Duration of webhook processing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CourierAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_assignments_total",
			Help: "Auto-assignment attempts by result",
		},
		[]string{"result"},
	)

	ReviewEmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_emails_total",
			Help: "Review request emails by result",
		},
		[]string{"result"},
	)

	ReminderSweepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweep_total",
			Help: "Reminder tasks handled by the sweep, by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register 注册全部指标，重复调用安全
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WebhookEventsTotal)
		prometheus.MustRegister(WebhookProcessingSeconds)
		prometheus.MustRegister(CourierAssignmentsTotal)
		prometheus.MustRegister(ReviewEmailsTotal)
		prometheus.MustRegister(ReminderSweepTotal)
	})
}

// ObserveWebhook 记录一次 webhook 处理结果与耗时
func ObserveWebhook(provider, status string, started time.Time) {
	if provider == "" {
		provider = "unknown"
	}
	WebhookEventsTotal.WithLabelValues(provider, status).Inc()
	WebhookProcessingSeconds.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// IncAssignment 记录分配结果
func IncAssignment(result string) {
	CourierAssignmentsTotal.WithLabelValues(result).Inc()
}

// IncReviewEmail 记录评价邀请邮件结果
func IncReviewEmail(result string) {
	ReviewEmailsTotal.WithLabelValues(result).Inc()
}

// IncReminderSweep 记录提醒任务处理结果
func IncReminderSweep(result string) {
	ReminderSweepTotal.WithLabelValues(result).Inc()
}
