package queue

import (
	"encoding/json"
	"fmt"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"

	"github.com/hibiken/asynq"
)

// 任务类型，worker 按此注册处理器
const (
	TaskReviewRequestEmail      = constants.TaskReviewRequestEmail
	TaskCourierAssignmentNotify = constants.TaskCourierAssignmentNotify
	TaskReminderSweep           = constants.TaskReminderSweep
)

// EmailPayload 邮件任务载荷
// 评价邀请在领取发送权时已落库，任务只携带渲染好的内容
type EmailPayload struct {
	RequestID string `json:"request_id,omitempty"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
}

// CourierAssignmentPayload 骑手分配通知载荷
// 处理时会重新读取配送请求，确认骑手仍是当前指派对象
type CourierAssignmentPayload struct {
	RequestID string `json:"request_id"`
	CourierID uint   `json:"courier_id"`
}

// taskID 同一请求同一骑手只入队一次
func (p CourierAssignmentPayload) taskID() string {
	return fmt.Sprintf("courier-notify:%s:%d", p.RequestID, p.CourierID)
}

// ReminderSweepPayload 提醒扫描载荷，Limit<=0 时使用配置的批量大小
type ReminderSweepPayload struct {
	Limit int `json:"limit,omitempty"`
}

func NewEmailTask(payload EmailPayload) (*asynq.Task, error) {
	return newTask(TaskReviewRequestEmail, payload)
}

func NewCourierAssignmentTask(payload CourierAssignmentPayload) (*asynq.Task, error) {
	return newTask(TaskCourierAssignmentNotify, payload)
}

func NewReminderSweepTask(payload ReminderSweepPayload) (*asynq.Task, error) {
	return newTask(TaskReminderSweep, payload)
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload failed: %w", taskType, err)
	}
	return asynq.NewTask(taskType, body), nil
}
