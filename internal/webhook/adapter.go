package webhook

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
)

// 通用请求头
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTopic     = "X-Webhook-Topic"
	HeaderWebhookSource    = "X-Webhook-Source"
)

// Inbound 一次入站 webhook 调用
type Inbound struct {
	Provider   string
	Topic      string // 查询参数中的兜底主题
	Headers    http.Header
	Body       []byte
	RequestID  string
	ReceivedAt time.Time
}

// Header 读取请求头
func (in Inbound) Header(key string) string {
	if in.Headers == nil {
		return ""
	}
	return strings.TrimSpace(in.Headers.Get(key))
}

// FirstHeader 返回第一个非空请求头
func (in Inbound) FirstHeader(keys ...string) string {
	for _, key := range keys {
		if value := in.Header(key); value != "" {
			return value
		}
	}
	return ""
}

// NormalizedOrder 提供方无关的规范化订单
type NormalizedOrder struct {
	Provider        string
	ExternalOrderID string
	ExternalSource  string
	OrderNumber     string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress string
	DeliveryCity    string
	Total           *models.Money
	Currency        string
	ProviderStatus  string
	// Status 映射后的规范状态，无法识别时为空
	Status string
}

// Validate 校验构成幂等键的字段
func (o *NormalizedOrder) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: order is nil", ErrMalformedPayload)
	}
	if strings.TrimSpace(o.ExternalOrderID) == "" {
		return fmt.Errorf("%w: external_order_id is required", ErrMalformedPayload)
	}
	if _, _, ok := models.SplitExternalSource(o.ExternalSource); !ok {
		return fmt.Errorf("%w: external_source is required", ErrMalformedPayload)
	}
	return nil
}

// Adapter 单个提供方的报文适配器
type Adapter interface {
	Provider() string
	// SignatureHeaders 可携带签名的请求头，按优先级排列
	SignatureHeaders() []string
	// ResolveTopic 解析事件主题，可能来自请求头或报文
	ResolveTopic(in Inbound, payload map[string]interface{}) string
	// SourceHint 仅依据请求头得到店铺标识，用于在验签前选择密钥
	SourceHint(in Inbound) string
	Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error)
}

// Registry 提供方到适配器的静态映射
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry 创建包含全部内置适配器的注册表
func NewRegistry() *Registry {
	return NewRegistryWith(
		ShopifyAdapter{},
		WooCommerceAdapter{},
		StripeAdapter{},
		MagentoAdapter{},
		PrestaShopAdapter{},
		OpenCartAdapter{},
		WixAdapter{},
		SquarespaceAdapter{},
		ExternalAdapter{},
	)
}

// NewRegistryWith 使用指定适配器创建注册表
func NewRegistryWith(adapters ...Adapter) *Registry {
	registry := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		registry.adapters[adapter.Provider()] = adapter
	}
	return registry
}

// Lookup 查找适配器
func (r *Registry) Lookup(provider string) (Adapter, error) {
	if r != nil {
		if adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]; ok {
			return adapter, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
}

// Normalize 调用适配器并统一补齐派生字段
func Normalize(adapter Adapter, in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, in.Provider)
	}
	order, err := adapter.Normalize(in, payload)
	if err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	order.Provider = adapter.Provider()
	order.ExternalOrderID = strings.TrimSpace(order.ExternalOrderID)
	order.CustomerEmail = strings.ToLower(strings.TrimSpace(order.CustomerEmail))
	order.Currency = strings.ToUpper(strings.TrimSpace(order.Currency))
	if order.DeliveryCity == "" {
		order.DeliveryCity = ParseCity(order.ShippingAddress)
	}
	return order, nil
}

// buildSource 组装 provider:identity，identity 为空时返回空串
func buildSource(provider, identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ""
	}
	return models.BuildExternalSource(provider, identity)
}

// hostOf 提取 URL 的主机名，非 URL 时原样返回
func hostOf(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		return strings.TrimRight(value, "/")
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Host
}

// topicFrom 按顺序取主题：请求头、报文字段、查询参数
func topicFrom(in Inbound, header string, payload map[string]interface{}, payloadKeys ...string) string {
	if value := in.Header(header); value != "" {
		return strings.ToLower(value)
	}
	for _, key := range payloadKeys {
		if value := readString(payload, key); value != "" {
			return strings.ToLower(value)
		}
	}
	return strings.ToLower(strings.TrimSpace(in.Topic))
}

// unwrap 部分提供方将订单包在 order/data 字段内
func unwrap(payload map[string]interface{}, keys ...string) map[string]interface{} {
	for _, key := range keys {
		if nested := readMap(payload, key); nested != nil {
			return nested
		}
	}
	return payload
}
