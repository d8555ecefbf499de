package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
)

// DecodePayload 解析 JSON 对象报文，数字保留为 json.Number 以免精度丢失
func DecodePayload(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrMalformedPayload)
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode body failed", ErrMalformedPayload)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedPayload)
	}
	return raw, nil
}

// readPath 逐层读取嵌套字段
func readPath(raw map[string]interface{}, path ...string) interface{} {
	var current interface{} = raw
	for _, key := range path {
		mapped, ok := current.(map[string]interface{})
		if !ok || mapped == nil {
			return nil
		}
		current, ok = mapped[key]
		if !ok {
			return nil
		}
	}
	return current
}

func readString(raw map[string]interface{}, path ...string) string {
	value := readPath(raw, path...)
	if value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, path ...string) map[string]interface{} {
	mapped, ok := readPath(raw, path...).(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}

func readFirstMap(raw map[string]interface{}, path ...string) map[string]interface{} {
	list, ok := readPath(raw, path...).([]interface{})
	if !ok {
		return nil
	}
	for _, item := range list {
		if mapped, ok := item.(map[string]interface{}); ok {
			return mapped
		}
	}
	return nil
}

func readInt64(raw map[string]interface{}, path ...string) (int64, bool) {
	value := readPath(raw, path...)
	switch typed := value.(type) {
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed, true
		}
		if parsed, err := typed.Float64(); err == nil {
			return int64(parsed), true
		}
	case float64:
		return int64(typed), true
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// readMoney 读取金额字段，缺失或非法时返回 nil
func readMoney(raw map[string]interface{}, path ...string) *models.Money {
	text := readString(raw, path...)
	if text == "" {
		return nil
	}
	amount, err := models.NewMoneyFromString(text)
	if err != nil {
		return nil
	}
	return &amount
}

// firstString 返回第一个非空字段
func firstString(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstMap(values ...map[string]interface{}) map[string]interface{} {
	for _, value := range values {
		if len(value) > 0 {
			return value
		}
	}
	return nil
}

func firstMoney(values ...*models.Money) *models.Money {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}

// joinName 拼接姓名
func joinName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}
