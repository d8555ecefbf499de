package ingest

import "github.com/Performile1/Performile-Version-1-sub001/internal/provider"

// Handler 入站 webhook 处理器入口
type Handler struct {
	*provider.Container
}

// New 创建入站处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
