package ops

import (
	"errors"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"
	"github.com/Performile1/Performile-Version-1-sub001/internal/queue"

	"github.com/gin-gonic/gin"
)

// SweepRemindersRequest 手动触发提醒扫描
type SweepRemindersRequest struct {
	Limit int `json:"limit"`
}

// SweepReminders 手动触发一次到期提醒扫描
// 队列可用时异步投递，同一扫描周期内去重；队列未启用时同步执行
func (h *Handler) SweepReminders(c *gin.Context) {
	var req SweepRemindersRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}
	if req.Limit < 0 {
		respondError(c, response.CodeBadRequest, "limit must not be negative", nil)
		return
	}
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}

	err := h.QueueClient.EnqueueReminderSweep(queue.ReminderSweepPayload{Limit: req.Limit}, h.Config.Review.SweepInterval())
	if err == nil {
		requestLog(c).Infow("ops_reminder_sweep_enqueued", "operator_id", operatorID, "limit", req.Limit)
		response.Success(c, gin.H{"mode": "queued"})
		return
	}
	if !errors.Is(err, queue.ErrQueueDisabled) {
		respondError(c, response.CodeInternal, "enqueue reminder sweep failed", err)
		return
	}

	result, err := h.ReminderService.SweepDueLimit(c.Request.Context(), time.Now(), req.Limit)
	if err != nil {
		respondError(c, response.CodeInternal, "reminder sweep failed", err)
		return
	}
	requestLog(c).Infow("ops_reminder_sweep_done",
		"operator_id", operatorID,
		"claimed", result.Claimed,
		"sent", result.Sent,
	)
	response.Success(c, gin.H{"mode": "inline", "result": result})
}
