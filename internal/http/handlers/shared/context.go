package shared

import (
	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetContextUint 读取鉴权中间件写入的正整数标识，缺失或为零时按未登录处理
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, ok := c.Get(key)
	if !ok {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}
	id, ok := value.(uint)
	if !ok {
		RespondError(c, response.CodeInternal, key+" has unexpected type", nil)
		return 0, false
	}
	if id == 0 {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}
	return id, true
}
