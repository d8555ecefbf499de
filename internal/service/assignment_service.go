package service

import (
	"context"
	"errors"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/metrics"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"

	"gorm.io/gorm"
)

const defaultCandidateLimit = 20

var (
	errCourierAtCapacity = errors.New("courier at capacity")
	errRequestTaken      = errors.New("request already assigned")
)

// AssignmentService 骑手自动分配
type AssignmentService struct {
	cfg         *config.AssignmentConfig
	requestRepo repository.DeliveryRequestRepository
	courierRepo repository.CourierRepository
	notifier    CourierNotifier
	now         func() time.Time
}

// NewAssignmentService 创建自动分配服务
func NewAssignmentService(
	cfg *config.AssignmentConfig,
	requestRepo repository.DeliveryRequestRepository,
	courierRepo repository.CourierRepository,
	notifier CourierNotifier,
) *AssignmentService {
	return &AssignmentService{
		cfg:         cfg,
		requestRepo: requestRepo,
		courierRepo: courierRepo,
		notifier:    notifier,
		now:         time.Now,
	}
}

// AutoAssign 为 pending 请求挑选并分配一名骑手
// 候选按评分降序、注册时间升序；容量预占与 courier_id CAS 在同一事务内，CAS 失败时预占一并回滚
// 无候选时返回 nil, nil
func (s *AssignmentService) AutoAssign(ctx context.Context, req *models.DeliveryRequest) (*models.Courier, error) {
	if req == nil || req.Status != constants.DeliveryStatusPending || req.CourierID != nil {
		metrics.IncAssignment(constants.AssignmentResultSkipped)
		return nil, nil
	}
	candidates, err := s.courierRepo.ListCandidates(repository.CourierCandidateFilter{
		City:  req.DeliveryCity,
		Limit: s.candidateLimit(),
	})
	if err != nil {
		metrics.IncAssignment(constants.AssignmentResultError)
		return nil, err
	}
	if len(candidates) == 0 {
		metrics.IncAssignment(constants.AssignmentResultNoCandidate)
		logger.Infow("assignment_no_candidate", "request_id", req.ID, "city", req.DeliveryCity)
		return nil, nil
	}

	for i := range candidates {
		courier := &candidates[i]
		assignedAt := s.now()
		err := s.requestRepo.Transaction(func(tx *gorm.DB) error {
			reserved, err := s.courierRepo.WithTx(tx).ReserveCapacity(courier.ID)
			if err != nil {
				return err
			}
			if reserved == 0 {
				return errCourierAtCapacity
			}
			swapped, err := s.requestRepo.WithTx(tx).AssignCourier(req.ID, courier.ID, assignedAt)
			if err != nil {
				return err
			}
			if swapped == 0 {
				return errRequestTaken
			}
			return nil
		})
		switch {
		case err == nil:
			metrics.IncAssignment(constants.AssignmentResultAssigned)
			logger.Infow("assignment_succeeded",
				"request_id", req.ID,
				"courier_id", courier.ID,
				"city", req.DeliveryCity,
			)
			s.notify(ctx, req, courier.ID, assignedAt)
			return courier, nil
		case errors.Is(err, errCourierAtCapacity):
			// 候选在查询后被其它请求占满，换下一个
			continue
		case errors.Is(err, errRequestTaken):
			metrics.IncAssignment(constants.AssignmentResultLostRace)
			logger.Infow("assignment_lost_race", "request_id", req.ID, "courier_id", courier.ID)
			return nil, nil
		default:
			metrics.IncAssignment(constants.AssignmentResultError)
			return nil, err
		}
	}

	metrics.IncAssignment(constants.AssignmentResultNoCandidate)
	logger.Infow("assignment_no_candidate", "request_id", req.ID, "city", req.DeliveryCity, "reason", "all_at_capacity")
	return nil, nil
}

func (s *AssignmentService) notify(ctx context.Context, req *models.DeliveryRequest, courierID uint, assignedAt time.Time) {
	if s.notifier == nil {
		return
	}
	notice := BuildAssignmentNotice(req, courierID)
	notice.AssignedAt = assignedAt
	if err := s.notifier.NotifyAssignment(ctx, notice); err != nil {
		logger.Warnw("courier_notify_failed",
			"request_id", req.ID,
			"courier_id", courierID,
			"error", err,
		)
	}
}

func (s *AssignmentService) candidateLimit() int {
	if s.cfg == nil || s.cfg.CandidateLimit <= 0 {
		return defaultCandidateLimit
	}
	return s.cfg.CandidateLimit
}
