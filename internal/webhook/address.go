package webhook

import (
	"strings"
	"unicode"
)

// Address 提供方报文中的收货地址
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Compose 组装为单行地址字符串
func (a Address) Compose() string {
	cityLine := joinName(a.PostalCode, a.City)
	parts := []string{a.Line1, a.Line2, cityLine, a.Region, a.Country}
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, ", ")
}

// IsEmpty 地址是否为空
func (a Address) IsEmpty() bool {
	return a.Compose() == ""
}

// ParseCity 从单行地址中解析城市
// 约定格式为 "街道, [邮编] 城市, ..."，取第二段并去掉其中的邮编片段
func ParseCity(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return ""
	}
	for _, part := range parts[1:] {
		if city := stripPostalTokens(part); city != "" {
			return city
		}
	}
	return ""
}

func stripPostalTokens(segment string) string {
	fields := strings.Fields(segment)
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		if hasDigit(field) {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}

func hasDigit(value string) bool {
	for _, r := range value {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// resolveCity 优先使用结构化城市字段，否则从地址字符串中解析
func resolveCity(address Address, composed string) string {
	if city := strings.TrimSpace(address.City); city != "" {
		return city
	}
	return ParseCity(composed)
}
