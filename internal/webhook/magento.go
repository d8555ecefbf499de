package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

var magentoStatusTable = map[string]string{
	"new":             constants.DeliveryStatusPending,
	"pending":         constants.DeliveryStatusPending,
	"pending_payment": constants.DeliveryStatusPending,
	"processing":      constants.DeliveryStatusPending,
	"holded":          constants.DeliveryStatusPending,
	"complete":        constants.DeliveryStatusCompleted,
	"canceled":        constants.DeliveryStatusCancelled,
	"closed":          constants.DeliveryStatusCancelled,
}

// MagentoAdapter Magento 2 订单 webhook，订单可能包在 order 字段内
type MagentoAdapter struct{}

func (MagentoAdapter) Provider() string { return constants.ProviderMagento }

func (MagentoAdapter) SignatureHeaders() []string { return []string{HeaderWebhookSignature} }

func (MagentoAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWebhookTopic, payload, "topic", "event")
}

func (MagentoAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(hostOf(in.Header(HeaderWebhookSource)))
}

func (a MagentoAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	order := unwrap(payload, "order")
	orderID := firstString(readString(order, "entity_id"), readString(order, "increment_id"))
	if orderID == "" {
		return nil, fmt.Errorf("%w: magento entity_id is required", ErrMalformedPayload)
	}
	source := firstString(a.SourceHint(in), hostOf(readString(payload, "store_url")), hostOf(readString(order, "store_url")))

	addressRaw := magentoShippingAddress(order)
	address := Address{
		Line1:      magentoStreet(addressRaw),
		City:       readString(addressRaw, "city"),
		Region:     readString(addressRaw, "region"),
		PostalCode: readString(addressRaw, "postcode"),
		Country:    readString(addressRaw, "country_id"),
	}
	composed := address.Compose()
	providerStatus := strings.ToLower(firstString(readString(order, "status"), readString(order, "state")))
	return &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), strings.ToLower(source)),
		OrderNumber:     firstString(readString(order, "increment_id"), orderID),
		CustomerEmail:   readString(order, "customer_email"),
		CustomerName: firstString(
			joinName(readString(addressRaw, "firstname"), readString(addressRaw, "lastname")),
			joinName(readString(order, "customer_firstname"), readString(order, "customer_lastname")),
		),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           readMoney(order, "grand_total"),
		Currency:        firstString(readString(order, "order_currency_code"), readString(order, "base_currency_code")),
		ProviderStatus:  providerStatus,
		Status:          magentoStatus(order, providerStatus),
	}, nil
}

// magentoStatus state 比自定义 status 更稳定，优先按 state 判定终态
func magentoStatus(order map[string]interface{}, providerStatus string) string {
	if state := strings.ToLower(readString(order, "state")); state != "" {
		if mapped, ok := magentoStatusTable[state]; ok {
			return mapped
		}
	}
	return magentoStatusTable[providerStatus]
}

func magentoShippingAddress(order map[string]interface{}) map[string]interface{} {
	if assignment := readFirstMap(order, "extension_attributes", "shipping_assignments"); assignment != nil {
		if address := readMap(assignment, "shipping", "address"); address != nil {
			return address
		}
	}
	return firstMap(readMap(order, "shipping_address"), readMap(order, "billing_address"))
}

// magentoStreet street 字段为字符串数组
func magentoStreet(address map[string]interface{}) string {
	value := readPath(address, "street")
	switch typed := value.(type) {
	case []interface{}:
		lines := make([]string, 0, len(typed))
		for _, item := range typed {
			if text, ok := item.(string); ok && strings.TrimSpace(text) != "" {
				lines = append(lines, strings.TrimSpace(text))
			}
		}
		return strings.Join(lines, " ")
	case string:
		return strings.TrimSpace(typed)
	}
	return ""
}
