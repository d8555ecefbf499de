package ops

import "github.com/Performile1/Performile-Version-1-sub001/internal/provider"

// Handler 运维接口处理器入口
// 说明：查询审计日志与重放失败事件，均需运维令牌。
type Handler struct {
	*provider.Container
}

// New 创建运维处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
