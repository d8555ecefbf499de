package service

import (
	"context"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/metrics"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
)

const (
	defaultSweepBatchSize    = 50
	defaultClaimLeaseSeconds = 300
	defaultReminderAttempts  = 5
)

// ReminderSweepResult 单次扫描统计
type ReminderSweepResult struct {
	Claimed   int `json:"claimed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// ReminderService 到期提醒扫描
type ReminderService struct {
	cfg          *config.ReviewConfig
	requestRepo  repository.DeliveryRequestRepository
	reminderRepo repository.ReminderTaskRepository
	review       *ReviewScheduler
	email        EmailDispatcher
}

// NewReminderService 创建提醒扫描服务
func NewReminderService(
	cfg *config.ReviewConfig,
	requestRepo repository.DeliveryRequestRepository,
	reminderRepo repository.ReminderTaskRepository,
	review *ReviewScheduler,
	email EmailDispatcher,
) *ReminderService {
	return &ReminderService{
		cfg:          cfg,
		requestRepo:  requestRepo,
		reminderRepo: reminderRepo,
		review:       review,
		email:        email,
	}
}

// SweepDue 领取并发送到期提醒
// 领取为条件更新，多个扫描进程并发运行时同一提醒只会被一个进程领取
func (s *ReminderService) SweepDue(ctx context.Context, now time.Time) (ReminderSweepResult, error) {
	return s.SweepDueLimit(ctx, now, 0)
}

// SweepDueLimit 与 SweepDue 相同，limit<=0 时使用配置的批量大小
func (s *ReminderService) SweepDueLimit(ctx context.Context, now time.Time, limit int) (ReminderSweepResult, error) {
	var result ReminderSweepResult
	if limit <= 0 {
		limit = s.batchSize()
	}
	tasks, err := s.reminderRepo.ClaimDue(now, now.Add(-s.claimLease()), limit)
	if err != nil {
		metrics.IncReminderSweep("error")
		return result, err
	}
	result.Claimed = len(tasks)
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			// 未处理的任务租约到期后会被重新领取
			return result, err
		}
		switch s.process(ctx, &tasks[i], now) {
		case constants.ReminderStatusSent:
			result.Sent++
		case constants.ReminderStatusCancelled:
			result.Cancelled++
		default:
			result.Failed++
		}
	}
	if result.Claimed > 0 {
		logger.Infow("reminder_sweep_finished",
			"claimed", result.Claimed,
			"sent", result.Sent,
			"failed", result.Failed,
			"cancelled", result.Cancelled,
		)
	}
	return result, nil
}

func (s *ReminderService) process(ctx context.Context, task *models.ReminderTask, now time.Time) string {
	req, err := s.requestRepo.GetByID(task.RequestID)
	if err != nil {
		s.release(task, err.Error(), false)
		metrics.IncReminderSweep("failed")
		return ""
	}
	if req == nil || req.Status == constants.DeliveryStatusCancelled {
		s.release(task, "request cancelled or missing", true)
		metrics.IncReminderSweep("cancelled")
		return constants.ReminderStatusCancelled
	}
	if strings.TrimSpace(req.CustomerEmail) == "" || req.ReviewLinkToken == nil || s.email == nil {
		s.release(task, "no recipient or review token", true)
		metrics.IncReminderSweep("cancelled")
		return constants.ReminderStatusCancelled
	}

	subject, body := buildReviewEmail(req, s.review.ReviewURL(*req.ReviewLinkToken), true)
	if err := s.email.Send(ctx, req.CustomerEmail, subject, body); err != nil {
		giveUp := task.Attempts >= s.maxAttempts()
		s.release(task, err.Error(), giveUp)
		logger.Warnw("reminder_send_failed",
			"reminder_id", task.ID,
			"request_id", task.RequestID,
			"attempts", task.Attempts,
			"give_up", giveUp,
			"error", err,
		)
		metrics.IncReminderSweep("failed")
		if giveUp {
			return constants.ReminderStatusCancelled
		}
		return ""
	}

	if _, err := s.reminderRepo.MarkSent(task.ID, now); err != nil {
		// 邮件已发出，标记失败时租约到期会重发，记录以便排查
		logger.Errorw("reminder_mark_sent_failed", "reminder_id", task.ID, "error", err)
		metrics.IncReminderSweep("error")
		return ""
	}
	metrics.IncReminderSweep("sent")
	return constants.ReminderStatusSent
}

func (s *ReminderService) release(task *models.ReminderTask, lastError string, giveUp bool) {
	if _, err := s.reminderRepo.ReleaseClaim(task.ID, lastError, giveUp); err != nil {
		logger.Errorw("reminder_release_failed", "reminder_id", task.ID, "error", err)
	}
}

func (s *ReminderService) batchSize() int {
	if s.cfg == nil || s.cfg.SweepBatchSize <= 0 {
		return defaultSweepBatchSize
	}
	return s.cfg.SweepBatchSize
}

func (s *ReminderService) claimLease() time.Duration {
	seconds := defaultClaimLeaseSeconds
	if s.cfg != nil && s.cfg.ClaimLeaseSeconds > 0 {
		seconds = s.cfg.ClaimLeaseSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (s *ReminderService) maxAttempts() int {
	if s.cfg == nil || s.cfg.MaxAttempts <= 0 {
		return defaultReminderAttempts
	}
	return s.cfg.MaxAttempts
}
