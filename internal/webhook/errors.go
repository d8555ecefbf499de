package webhook

import "errors"

var (
	// ErrSignatureInvalid 签名缺失或不匹配
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrSecretMissing 未配置签名密钥，按签名失败处理
	ErrSecretMissing = errors.New("webhook secret missing")
	// ErrUnsupportedTopic 已知提供方的未订阅事件
	ErrUnsupportedTopic = errors.New("webhook topic unsupported")
	// ErrUnknownProvider 未接入的提供方
	ErrUnknownProvider = errors.New("webhook provider unknown")
	// ErrMalformedPayload 报文无法解析或缺少幂等键字段
	ErrMalformedPayload = errors.New("webhook payload malformed")
)
