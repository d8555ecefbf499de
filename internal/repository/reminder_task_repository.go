package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReminderTaskRepository 提醒任务数据访问接口
type ReminderTaskRepository interface {
	CreateIfAbsent(task *models.ReminderTask) (bool, error)
	GetByRequestID(requestID string) (*models.ReminderTask, error)
	CancelPendingByRequest(requestID, reason string) (int64, error)
	ClaimDue(now, staleBefore time.Time, limit int) ([]models.ReminderTask, error)
	MarkSent(id uint, at time.Time) (int64, error)
	ReleaseClaim(id uint, lastError string, giveUp bool) (int64, error)
	WithTx(tx *gorm.DB) *GormReminderTaskRepository
}

// GormReminderTaskRepository GORM 实现
type GormReminderTaskRepository struct {
	db *gorm.DB
}

// NewReminderTaskRepository 创建提醒任务仓库
func NewReminderTaskRepository(db *gorm.DB) *GormReminderTaskRepository {
	return &GormReminderTaskRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReminderTaskRepository) WithTx(tx *gorm.DB) *GormReminderTaskRepository {
	if tx == nil {
		return r
	}
	return &GormReminderTaskRepository{db: tx}
}

// CreateIfAbsent 幂等创建，同一配送请求已有任务时返回 false
func (r *GormReminderTaskRepository) CreateIfAbsent(task *models.ReminderTask) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(task)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetByRequestID 根据配送请求获取提醒任务
func (r *GormReminderTaskRepository) GetByRequestID(requestID string) (*models.ReminderTask, error) {
	var task models.ReminderTask
	if err := r.db.Where("request_id = ?", requestID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// CancelPendingByRequest 取消配送请求下仍待发送的提醒
func (r *GormReminderTaskRepository) CancelPendingByRequest(requestID, reason string) (int64, error) {
	result := r.db.Model(&models.ReminderTask{}).
		Where("request_id = ? AND status = ?", requestID, constants.ReminderStatusPending).
		Updates(map[string]interface{}{
			"status":     constants.ReminderStatusCancelled,
			"last_error": strings.TrimSpace(reason),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClaimDue 以条件更新领取到期提醒并返回被领取的行
// 领取后 claimed_at 更新为 now，租约过期（claimed_at <= staleBefore）的任务可被再次领取
func (r *GormReminderTaskRepository) ClaimDue(now, staleBefore time.Time, limit int) ([]models.ReminderTask, error) {
	if limit <= 0 {
		limit = 50
	}
	due := r.db.Model(&models.ReminderTask{}).
		Select("id").
		Where("status = ? AND scheduled_for <= ?", constants.ReminderStatusPending, now).
		Where("claimed_at IS NULL OR claimed_at <= ?", staleBefore).
		Order("scheduled_for asc").
		Limit(limit)
	if locking := skipLockedClauses(r.db); len(locking) > 0 {
		due = due.Clauses(locking...)
	}

	var tasks []models.ReminderTask
	result := r.db.Model(&tasks).
		Clauses(clause.Returning{}).
		Where("id IN (?)", due).
		Where("status = ? AND scheduled_for <= ?", constants.ReminderStatusPending, now).
		Where("claimed_at IS NULL OR claimed_at <= ?", staleBefore).
		Updates(map[string]interface{}{
			"claimed_at": now,
			"attempts":   gorm.Expr("attempts + ?", 1),
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// MarkSent 标记已发送
func (r *GormReminderTaskRepository) MarkSent(id uint, at time.Time) (int64, error) {
	result := r.db.Model(&models.ReminderTask{}).
		Where("id = ? AND status = ?", id, constants.ReminderStatusPending).
		Updates(map[string]interface{}{
			"status":     constants.ReminderStatusSent,
			"sent_at":    at,
			"last_error": "",
			"updated_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReleaseClaim 发送失败时释放领取；giveUp 为 true 时直接取消
func (r *GormReminderTaskRepository) ReleaseClaim(id uint, lastError string, giveUp bool) (int64, error) {
	updates := map[string]interface{}{
		"claimed_at": nil,
		"last_error": strings.TrimSpace(lastError),
		"updated_at": time.Now(),
	}
	if giveUp {
		updates["status"] = constants.ReminderStatusCancelled
	}
	result := r.db.Model(&models.ReminderTask{}).
		Where("id = ? AND status = ?", id, constants.ReminderStatusPending).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
