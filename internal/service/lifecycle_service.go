package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
	"github.com/Performile1/Performile-Version-1-sub001/internal/webhook"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleService 配送请求状态机
// 所有状态写入都是带守卫的条件更新，重复、乱序、并发的事件都只会让状态单调前进
type LifecycleService struct {
	cfg          *config.Config
	requestRepo  repository.DeliveryRequestRepository
	courierRepo  repository.CourierRepository
	shopRepo     repository.ShopRepository
	reminderRepo repository.ReminderTaskRepository
	assignment   *AssignmentService
	review       *ReviewScheduler
	now          func() time.Time
}

// ApplyResult 一次状态机调用的结果
type ApplyResult struct {
	Request *models.DeliveryRequest
	Action  webhook.Action
	// Created 本次调用插入了新行
	Created bool
	// Transitioned 本次调用完成了一次终态迁移
	Transitioned bool
	// Assigned 本次调用完成了骑手分配
	Assigned bool
}

// NewLifecycleService 创建状态机服务
func NewLifecycleService(
	cfg *config.Config,
	requestRepo repository.DeliveryRequestRepository,
	courierRepo repository.CourierRepository,
	shopRepo repository.ShopRepository,
	reminderRepo repository.ReminderTaskRepository,
	assignment *AssignmentService,
	review *ReviewScheduler,
) *LifecycleService {
	return &LifecycleService{
		cfg:          cfg,
		requestRepo:  requestRepo,
		courierRepo:  courierRepo,
		shopRepo:     shopRepo,
		reminderRepo: reminderRepo,
		assignment:   assignment,
		review:       review,
		now:          time.Now,
	}
}

// Apply 将规范化订单按动作写入状态机，条件写入冲突时重试一次
func (s *LifecycleService) Apply(ctx context.Context, order *webhook.NormalizedOrder, action webhook.Action) (*ApplyResult, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: order is nil", webhook.ErrMalformedPayload)
	}
	if action == webhook.ActionIgnore {
		return &ApplyResult{Action: action}, nil
	}
	result, err := s.applyOnce(ctx, order, action)
	if errors.Is(err, ErrPersistenceConflict) {
		logger.Warnw("lifecycle_conflict_retry",
			"external_order_id", order.ExternalOrderID,
			"external_source", order.ExternalSource,
			"action", action,
			"error", err,
		)
		result, err = s.applyOnce(ctx, order, action)
	}
	return result, err
}

func (s *LifecycleService) applyOnce(ctx context.Context, order *webhook.NormalizedOrder, action webhook.Action) (*ApplyResult, error) {
	shop, err := s.shopRepo.GetBySource(order.ExternalSource)
	if err != nil {
		return nil, err
	}

	// 任何动作都先保证行存在，完成事件先于创建事件到达时同样只产生一行
	created, err := s.requestRepo.CreateIfAbsent(s.buildRequest(order, shop))
	if err != nil {
		return nil, err
	}
	row, err := s.requestRepo.GetByKey(order.ExternalOrderID, order.ExternalSource)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: request %s/%s vanished after insert", ErrPersistenceConflict, order.ExternalOrderID, order.ExternalSource)
	}
	result := &ApplyResult{Request: row, Action: action, Created: created}

	if !created && !row.IsTerminal() {
		if _, err := s.requestRepo.RefreshFields(order.ExternalOrderID, order.ExternalSource, refreshFieldsOf(order)); err != nil {
			return nil, err
		}
	}

	switch action {
	case webhook.ActionCreate, webhook.ActionUpdate:
		if err := s.reload(result); err != nil {
			return nil, err
		}
		s.maybeAutoAssign(ctx, shop, result)
	case webhook.ActionComplete:
		if err := s.complete(ctx, order, result); err != nil {
			return nil, err
		}
	case webhook.ActionCancel:
		if err := s.cancel(order, result); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: action %s", webhook.ErrUnsupportedTopic, action)
	}
	return result, nil
}

func (s *LifecycleService) complete(ctx context.Context, order *webhook.NormalizedOrder, result *ApplyResult) error {
	now := s.now()
	err := s.requestRepo.Transaction(func(tx *gorm.DB) error {
		requestTx := s.requestRepo.WithTx(tx)
		affected, err := requestTx.MarkCompleted(order.ExternalOrderID, order.ExternalSource, now)
		if err != nil {
			return err
		}
		row, err := requestTx.GetByKey(order.ExternalOrderID, order.ExternalSource)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: request missing during completion", ErrPersistenceConflict)
		}
		result.Request = row
		if affected == 0 {
			if !row.IsTerminal() {
				return fmt.Errorf("%w: completion matched no rows while status=%s", ErrPersistenceConflict, row.Status)
			}
			return nil
		}
		result.Transitioned = true
		return s.releaseCourier(tx, row)
	})
	if err != nil {
		return err
	}
	if result.Transitioned {
		logger.Infow("delivery_request_completed",
			"request_id", result.Request.ID,
			"external_order_id", result.Request.ExternalOrderID,
			"external_source", result.Request.ExternalSource,
		)
	}
	// 重放的完成事件同样会检查发送守卫，用于补偿完成后未来得及调度的情况
	if result.Request.Status == constants.DeliveryStatusCompleted && !result.Request.ReviewLinkSent && s.review != nil {
		if _, err := s.review.OnCompleted(ctx, result.Request); err != nil {
			return err
		}
		return s.reload(result)
	}
	return nil
}

func (s *LifecycleService) cancel(order *webhook.NormalizedOrder, result *ApplyResult) error {
	now := s.now()
	err := s.requestRepo.Transaction(func(tx *gorm.DB) error {
		requestTx := s.requestRepo.WithTx(tx)
		affected, err := requestTx.MarkCancelled(order.ExternalOrderID, order.ExternalSource, now)
		if err != nil {
			return err
		}
		row, err := requestTx.GetByKey(order.ExternalOrderID, order.ExternalSource)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: request missing during cancellation", ErrPersistenceConflict)
		}
		result.Request = row
		if affected == 0 && !row.IsTerminal() {
			return fmt.Errorf("%w: cancellation matched no rows while status=%s", ErrPersistenceConflict, row.Status)
		}
		if affected == 1 {
			result.Transitioned = true
			if err := s.releaseCourier(tx, row); err != nil {
				return err
			}
		}
		if row.Status != constants.DeliveryStatusCancelled {
			return nil
		}
		cancelled, err := s.reminderRepo.WithTx(tx).CancelPendingByRequest(row.ID, "request cancelled")
		if err != nil {
			return err
		}
		if cancelled > 0 {
			logger.Infow("reminder_cancelled_with_request", "request_id", row.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if result.Transitioned {
		logger.Infow("delivery_request_cancelled",
			"request_id", result.Request.ID,
			"external_order_id", result.Request.ExternalOrderID,
			"external_source", result.Request.ExternalSource,
		)
	}
	return nil
}

// releaseCourier 释放已分配骑手的一个容量单位，仅在本次调用完成迁移时执行
func (s *LifecycleService) releaseCourier(tx *gorm.DB, row *models.DeliveryRequest) error {
	if row == nil || row.CourierID == nil || s.courierRepo == nil {
		return nil
	}
	affected, err := s.courierRepo.WithTx(tx).ReleaseCapacity(*row.CourierID)
	if err != nil {
		return err
	}
	if affected == 0 {
		logger.Warnw("courier_capacity_release_skipped", "courier_id", *row.CourierID, "request_id", row.ID)
	}
	return nil
}

func (s *LifecycleService) maybeAutoAssign(ctx context.Context, shop *models.Shop, result *ApplyResult) {
	row := result.Request
	if s.assignment == nil || shop == nil || !shop.AutoAssign {
		return
	}
	if s.cfg != nil && !s.cfg.Assignment.Enabled {
		return
	}
	// 仅在首次建行时尝试，后续更新事件不重新触发分配
	if !result.Created {
		return
	}
	if row == nil || row.Status != constants.DeliveryStatusPending || row.CourierID != nil {
		return
	}
	courier, err := s.assignment.AutoAssign(ctx, row)
	if err != nil {
		// 分配失败不影响入站处理结果，请求保持 pending
		logger.Errorw("assignment_failed", "request_id", row.ID, "error", err)
		return
	}
	if courier == nil {
		return
	}
	result.Assigned = true
	if err := s.reload(result); err != nil {
		logger.Warnw("lifecycle_reload_failed", "request_id", row.ID, "error", err)
	}
}

func (s *LifecycleService) reload(result *ApplyResult) error {
	if result == nil || result.Request == nil {
		return nil
	}
	row, err := s.requestRepo.GetByID(result.Request.ID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: request %s missing on reload", ErrPersistenceConflict, result.Request.ID)
	}
	result.Request = row
	return nil
}

func (s *LifecycleService) buildRequest(order *webhook.NormalizedOrder, shop *models.Shop) *models.DeliveryRequest {
	req := &models.DeliveryRequest{
		ID:              uuid.NewString(),
		ExternalOrderID: order.ExternalOrderID,
		ExternalSource:  order.ExternalSource,
		Provider:        order.Provider,
		OrderNumber:     order.OrderNumber,
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		DeliveryAddress: order.ShippingAddress,
		DeliveryCity:    order.DeliveryCity,
		Currency:        order.Currency,
		ProviderStatus:  order.ProviderStatus,
		Status:          constants.DeliveryStatusPending,
	}
	if order.Total != nil {
		req.OrderValue = *order.Total
	}
	if shop != nil {
		shopID := shop.ID
		req.ShopID = &shopID
		req.PickupAddress = shop.PickupAddress
	}
	return req
}

func refreshFieldsOf(order *webhook.NormalizedOrder) repository.DeliveryRefreshFields {
	return repository.DeliveryRefreshFields{
		OrderNumber:     order.OrderNumber,
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		DeliveryAddress: order.ShippingAddress,
		DeliveryCity:    order.DeliveryCity,
		OrderValue:      order.Total,
		Currency:        order.Currency,
		ProviderStatus:  order.ProviderStatus,
	}
}
