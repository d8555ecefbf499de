package service

import "errors"

var (
	// ErrPersistenceConflict 条件写入意外未命中任何行
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrDownstreamNotification 邮件或骑手通知发送失败，仅记录不影响处理结果
	ErrDownstreamNotification = errors.New("downstream notification failed")
	// ErrRequestNotFound 配送请求不存在
	ErrRequestNotFound = errors.New("delivery request not found")
	// ErrEventNotFound 审计记录不存在
	ErrEventNotFound = errors.New("webhook event not found")
	// ErrReplayNotAllowed 仅处理失败（error）的事件允许重放
	ErrReplayNotAllowed = errors.New("webhook event replay not allowed")
	// ErrOperatorInvalid 运维账号不存在、已停用或密码错误
	ErrOperatorInvalid = errors.New("operator credentials invalid")
	// ErrTokenInvalid 运维令牌无效
	ErrTokenInvalid = errors.New("operator token invalid")
)

// 邮件发送错误
var (
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrInvalidEmail              = errors.New("invalid email address")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
)
