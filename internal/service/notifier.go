package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/cache"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/queue"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
)

// AssignmentNotice 骑手分配通知内容
type AssignmentNotice struct {
	RequestID       string    `json:"request_id"`
	CourierID       uint      `json:"courier_id"`
	ExternalOrderID string    `json:"external_order_id"`
	ExternalSource  string    `json:"external_source"`
	OrderNumber     string    `json:"order_number"`
	PickupAddress   string    `json:"pickup_address"`
	DeliveryAddress string    `json:"delivery_address"`
	DeliveryCity    string    `json:"delivery_city"`
	AssignedAt      time.Time `json:"assigned_at"`
}

// BuildAssignmentNotice 由配送请求构建通知
func BuildAssignmentNotice(req *models.DeliveryRequest, courierID uint) AssignmentNotice {
	notice := AssignmentNotice{CourierID: courierID, AssignedAt: time.Now()}
	if req == nil {
		return notice
	}
	notice.RequestID = req.ID
	notice.ExternalOrderID = req.ExternalOrderID
	notice.ExternalSource = req.ExternalSource
	notice.OrderNumber = req.OrderNumber
	notice.PickupAddress = req.PickupAddress
	notice.DeliveryAddress = req.DeliveryAddress
	notice.DeliveryCity = req.DeliveryCity
	if req.AssignedAt != nil {
		notice.AssignedAt = *req.AssignedAt
	}
	return notice
}

// CourierNotifier 骑手通知接口，失败只影响通知本身
type CourierNotifier interface {
	NotifyAssignment(ctx context.Context, notice AssignmentNotice) error
}

// CourierChannel 骑手专属的推送频道
func CourierChannel(courierID uint) string {
	return fmt.Sprintf("courier:%d:assignments", courierID)
}

// RedisCourierNotifier 通过 Redis 发布订阅推送分配消息
type RedisCourierNotifier struct{}

// NewRedisCourierNotifier 创建 Redis 推送通知器
func NewRedisCourierNotifier() *RedisCourierNotifier {
	return &RedisCourierNotifier{}
}

// NotifyAssignment 发布分配消息，Redis 未启用时仅记录日志
func (n *RedisCourierNotifier) NotifyAssignment(ctx context.Context, notice AssignmentNotice) error {
	if !cache.Enabled() {
		logger.Infow("courier_assignment_notice_logged",
			"courier_id", notice.CourierID,
			"request_id", notice.RequestID,
			"order_number", notice.OrderNumber,
		)
		return nil
	}
	receivers, err := cache.Publish(ctx, CourierChannel(notice.CourierID), notice)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownstreamNotification, err)
	}
	if receivers == 0 {
		// 骑手端离线时消息丢弃，仅留痕
		logger.Debugw("courier_assignment_notice_no_subscriber",
			"courier_id", notice.CourierID,
			"request_id", notice.RequestID,
		)
	}
	return nil
}

// QueuedCourierNotifier 通过异步队列投递分配通知
type QueuedCourierNotifier struct {
	queue  *queue.Client
	direct CourierNotifier
}

// NewQueuedCourierNotifier 创建队列通知器
func NewQueuedCourierNotifier(queueClient *queue.Client, direct CourierNotifier) *QueuedCourierNotifier {
	return &QueuedCourierNotifier{queue: queueClient, direct: direct}
}

// NotifyAssignment 入队通知任务，队列不可用时直接推送
func (n *QueuedCourierNotifier) NotifyAssignment(ctx context.Context, notice AssignmentNotice) error {
	err := n.queue.EnqueueCourierAssignment(queue.CourierAssignmentPayload{
		RequestID: notice.RequestID,
		CourierID: notice.CourierID,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, queue.ErrQueueDisabled) {
		logger.Warnw("courier_notice_enqueue_failed_fallback_direct",
			"courier_id", notice.CourierID,
			"request_id", notice.RequestID,
			"error", err,
		)
	}
	if n.direct == nil {
		return err
	}
	return n.direct.NotifyAssignment(ctx, notice)
}

// CourierNotificationService worker 侧的分配通知处理
type CourierNotificationService struct {
	requestRepo repository.DeliveryRequestRepository
	notifier    CourierNotifier
}

// NewCourierNotificationService 创建分配通知处理服务
func NewCourierNotificationService(requestRepo repository.DeliveryRequestRepository, notifier CourierNotifier) *CourierNotificationService {
	return &CourierNotificationService{requestRepo: requestRepo, notifier: notifier}
}

// HandleAssignmentTask 处理队列中的分配通知
// 请求已被改派或已取消时丢弃任务
func (s *CourierNotificationService) HandleAssignmentTask(ctx context.Context, requestID string, courierID uint) error {
	req, err := s.requestRepo.GetByID(requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.CourierID == nil || *req.CourierID != courierID || req.IsTerminal() {
		logger.Infow("courier_notice_task_stale",
			"request_id", requestID,
			"courier_id", courierID,
			"status", req.Status,
		)
		return nil
	}
	return s.notifier.NotifyAssignment(ctx, BuildAssignmentNotice(req, courierID))
}
