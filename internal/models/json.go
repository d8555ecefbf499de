package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON 以文本存储的 JSON 对象列，审计行用它保存请求头快照
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = JSON{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan JSON column: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*j = JSON{}
		return nil
	}
	return json.Unmarshal(raw, j)
}

// String 读取字符串字段，缺失或类型不符时返回空串
func (j JSON) String(key string) string {
	text, _ := j[key].(string)
	return text
}
