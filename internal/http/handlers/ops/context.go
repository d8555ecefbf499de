package ops

import (
	handlershared "github.com/Performile1/Performile-Version-1-sub001/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 鉴权中间件写入的上下文键
const (
	ContextOperatorID = "operator_id"
	ContextUsername   = "operator_username"
	ContextRole       = "operator_role"
)

func getOperatorID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, ContextOperatorID)
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}
