package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// requestIDKey 与请求 ID 中间件写入的上下文键一致
const requestIDKey = "request_id"

// Response 运维接口统一响应结构
type Response struct {
	StatusCode int         `json:"status_code"` // 业务状态码，成功为 0
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Response
	Pagination Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// ErrorData 错误响应携带的数据，便于按 request_id 关联日志
type ErrorData struct {
	RequestID string `json:"request_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{StatusCode: CodeOK, Msg: "success", Data: data})
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, PageResponse{
		Response:   Response{StatusCode: CodeOK, Msg: "success", Data: data},
		Pagination: pagination,
	})
}

// Error 错误响应，业务码落在 4xx/5xx 区间时同时作为 HTTP 状态码
func Error(c *gin.Context, code int, msg string) {
	var data interface{}
	if id := requestID(c); id != "" {
		data = ErrorData{RequestID: id}
	}
	c.JSON(HTTPStatus(code), Response{StatusCode: code, Msg: msg, Data: data})
}

func Unauthorized(c *gin.Context, msg string) {
	Error(c, CodeUnauthorized, msg)
}

func Forbidden(c *gin.Context, msg string) {
	Error(c, CodeForbidden, msg)
}

// HTTPStatus 业务码到 HTTP 状态码的映射，非错误区间一律 200
func HTTPStatus(code int) int {
	if code >= http.StatusBadRequest && code < 600 {
		return code
	}
	return http.StatusOK
}

func requestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	id, _ := c.Get(requestIDKey)
	text, _ := id.(string)
	return text
}
