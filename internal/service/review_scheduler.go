package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/metrics"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"

	"gorm.io/gorm"
)

const (
	reviewTokenBytes          = 32
	defaultReminderDelayHours = 168
)

// ReviewScheduler 评价邀请与提醒调度
type ReviewScheduler struct {
	cfg          *config.ReviewConfig
	requestRepo  repository.DeliveryRequestRepository
	reminderRepo repository.ReminderTaskRepository
	email        EmailDispatcher
	now          func() time.Time
}

// NewReviewScheduler 创建评价调度器
func NewReviewScheduler(
	cfg *config.ReviewConfig,
	requestRepo repository.DeliveryRequestRepository,
	reminderRepo repository.ReminderTaskRepository,
	email EmailDispatcher,
) *ReviewScheduler {
	return &ReviewScheduler{
		cfg:          cfg,
		requestRepo:  requestRepo,
		reminderRepo: reminderRepo,
		email:        email,
		now:          time.Now,
	}
}

// OnCompleted 对已完成的请求领取评价邀请发送权
// 领取与提醒插入在同一事务内；只有领取成功的调用发送邮件，邮件失败不回滚
// 返回是否由本次调用完成领取
func (s *ReviewScheduler) OnCompleted(ctx context.Context, req *models.DeliveryRequest) (bool, error) {
	if req == nil || req.Status != constants.DeliveryStatusCompleted || req.ReviewLinkSent {
		return false, nil
	}
	token, err := generateReviewToken()
	if err != nil {
		return false, err
	}
	now := s.now()
	completedAt := now
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}

	claimed := false
	err = s.requestRepo.Transaction(func(tx *gorm.DB) error {
		affected, err := s.requestRepo.WithTx(tx).ClaimReviewDispatch(req.ID, token, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		claimed = true
		_, err = s.reminderRepo.WithTx(tx).CreateIfAbsent(&models.ReminderTask{
			RequestID:    req.ID,
			ScheduledFor: completedAt.Add(s.reminderDelay()),
			Status:       constants.ReminderStatusPending,
		})
		return err
	})
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	logger.Infow("review_dispatch_claimed", "request_id", req.ID)
	s.sendReviewEmail(ctx, req, token)
	return true, nil
}

func (s *ReviewScheduler) sendReviewEmail(ctx context.Context, req *models.DeliveryRequest, token string) {
	if s.email == nil || strings.TrimSpace(req.CustomerEmail) == "" {
		metrics.IncReviewEmail("skipped")
		logger.Infow("review_email_skipped", "request_id", req.ID, "reason", "no_recipient")
		return
	}
	subject, body := buildReviewEmail(req, s.ReviewURL(token), false)
	if err := s.email.Send(ctx, req.CustomerEmail, subject, body); err != nil {
		metrics.IncReviewEmail("failed")
		logger.Warnw("review_email_failed",
			"request_id", req.ID,
			"error", fmt.Errorf("%w: %v", ErrDownstreamNotification, err),
		)
		return
	}
	metrics.IncReviewEmail("sent")
}

// ReviewURL 组装评价链接
func (s *ReviewScheduler) ReviewURL(token string) string {
	base := ""
	if s != nil && s.cfg != nil {
		base = strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/")
	}
	return base + "/" + token
}

func (s *ReviewScheduler) reminderDelay() time.Duration {
	hours := defaultReminderDelayHours
	if s.cfg != nil && s.cfg.ReminderDelayHours > 0 {
		hours = s.cfg.ReminderDelayHours
	}
	return time.Duration(hours) * time.Hour
}

func generateReviewToken() (string, error) {
	buf := make([]byte, reviewTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func buildReviewEmail(req *models.DeliveryRequest, link string, reminder bool) (string, string) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = "there"
	}
	orderRef := strings.TrimSpace(req.OrderNumber)
	if orderRef == "" {
		orderRef = req.ExternalOrderID
	}
	subject := fmt.Sprintf("How was your delivery of order %s?", orderRef)
	intro := "Your order has been delivered. We would love to hear how it went."
	if reminder {
		subject = fmt.Sprintf("Reminder: rate your delivery of order %s", orderRef)
		intro = "A quick reminder that your feedback on this delivery is still welcome."
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<p>Hi %s,</p>", html.EscapeString(name)))
	b.WriteString(fmt.Sprintf("<p>%s</p>", intro))
	b.WriteString(fmt.Sprintf(`<p><a href="%s">Leave a review</a></p>`, html.EscapeString(link)))
	b.WriteString(fmt.Sprintf("<p>Order: %s</p>", html.EscapeString(orderRef)))
	b.WriteString("</body></html>")
	return subject, b.String()
}
