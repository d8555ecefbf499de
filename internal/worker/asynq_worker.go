package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/provider"
	"github.com/Performile1/Performile-Version-1-sub001/internal/queue"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskReviewRequestEmail, c.handleReviewRequestEmail)
	mux.HandleFunc(queue.TaskCourierAssignmentNotify, c.handleCourierAssignmentNotify)
	mux.HandleFunc(queue.TaskReminderSweep, c.handleReminderSweep)
}

func (c *Consumer) handleReviewRequestEmail(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.EmailService == nil {
		logger.Debugw("worker_review_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_review_email_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	to := strings.TrimSpace(payload.To)
	if to == "" {
		logger.Debugw("worker_review_email_skip_no_recipient", "request_id", payload.RequestID)
		return nil
	}
	err := c.EmailService.Send(ctx, to, payload.Subject, payload.HTML)
	if err == nil {
		logger.Infow("worker_review_email_sent", "request_id", payload.RequestID, "to", to)
		return nil
	}
	if isPermanentEmailError(err) {
		// 发送权已在入队前领取，永久性失败只记录不重试
		logger.Warnw("worker_review_email_dropped", "request_id", payload.RequestID, "to", to, "error", err)
		return nil
	}
	logger.Warnw("worker_review_email_send_failed", "request_id", payload.RequestID, "to", to, "error", err)
	return err
}

func (c *Consumer) handleCourierAssignmentNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.CourierNotificationService == nil {
		logger.Debugw("worker_courier_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CourierAssignmentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_courier_notify_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if strings.TrimSpace(payload.RequestID) == "" || payload.CourierID == 0 {
		logger.Debugw("worker_courier_notify_skip_invalid_payload", "request_id", payload.RequestID, "courier_id", payload.CourierID)
		return nil
	}
	err := c.CourierNotificationService.HandleAssignmentTask(ctx, payload.RequestID, payload.CourierID)
	if errors.Is(err, service.ErrRequestNotFound) {
		logger.Debugw("worker_courier_notify_skip_request_not_found", "request_id", payload.RequestID)
		return nil
	}
	if err != nil {
		logger.Warnw("worker_courier_notify_failed",
			"request_id", payload.RequestID,
			"courier_id", payload.CourierID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleReminderSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.ReminderService == nil {
		logger.Debugw("worker_reminder_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReminderSweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_reminder_sweep_unmarshal_failed", "error", err)
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
	if _, err := c.ReminderService.SweepDueLimit(ctx, time.Now(), payload.Limit); err != nil {
		logger.Warnw("worker_reminder_sweep_failed", "error", err)
		return err
	}
	return nil
}

func isPermanentEmailError(err error) bool {
	return errors.Is(err, service.ErrEmailServiceDisabled) ||
		errors.Is(err, service.ErrEmailServiceNotConfigured) ||
		errors.Is(err, service.ErrInvalidEmail) ||
		errors.Is(err, service.ErrEmailRecipientRejected)
}
