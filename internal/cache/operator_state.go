package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
)

const operatorStateCacheTTL = 10 * time.Minute

// OperatorAuthState 运维账号鉴权快照，仅用于服务端缓存
type OperatorAuthState struct {
	OperatorID uint   `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	IsActive   bool   `json:"is_active"`
	UpdatedAt  int64  `json:"updated_at"`
}

func operatorStateKey(operatorID uint) string {
	return fmt.Sprintf("auth:operator:%d", operatorID)
}

// BuildOperatorAuthState 从运维账号构建快照
func BuildOperatorAuthState(operator *models.Operator) *OperatorAuthState {
	if operator == nil {
		return nil
	}
	return &OperatorAuthState{
		OperatorID: operator.ID,
		Username:   operator.Username,
		Role:       operator.Role,
		IsActive:   operator.IsActive,
		UpdatedAt:  time.Now().Unix(),
	}
}

// GetOperatorAuthState 读取运维账号快照
func GetOperatorAuthState(ctx context.Context, operatorID uint) (*OperatorAuthState, bool, error) {
	if operatorID == 0 {
		return nil, false, nil
	}
	var state OperatorAuthState
	hit, err := GetJSON(ctx, operatorStateKey(operatorID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetOperatorAuthState 写入运维账号快照
func SetOperatorAuthState(ctx context.Context, state *OperatorAuthState) error {
	if state == nil || state.OperatorID == 0 {
		return nil
	}
	return SetJSON(ctx, operatorStateKey(state.OperatorID), state, operatorStateCacheTTL)
}

// DelOperatorAuthState 删除运维账号快照
func DelOperatorAuthState(ctx context.Context, operatorID uint) error {
	if operatorID == 0 {
		return nil
	}
	return Del(ctx, operatorStateKey(operatorID))
}
