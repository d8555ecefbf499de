package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

var externalStatusTable = map[string]string{
	"new":        constants.DeliveryStatusPending,
	"pending":    constants.DeliveryStatusPending,
	"paid":       constants.DeliveryStatusPending,
	"processing": constants.DeliveryStatusPending,
	"completed":  constants.DeliveryStatusCompleted,
	"delivered":  constants.DeliveryStatusCompleted,
	"fulfilled":  constants.DeliveryStatusCompleted,
	"cancelled":  constants.DeliveryStatusCancelled,
	"canceled":   constants.DeliveryStatusCancelled,
	"refunded":   constants.DeliveryStatusCancelled,
}

// ExternalAdapter 自定义集成的通用格式
// 幂等来源始终落在 external 命名空间下，不能借此写入其他平台的订单
type ExternalAdapter struct{}

func (ExternalAdapter) Provider() string { return constants.ProviderExternal }

func (ExternalAdapter) SignatureHeaders() []string { return []string{HeaderWebhookSignature} }

func (ExternalAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWebhookTopic, payload, "event")
}

func (ExternalAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(in.Header(HeaderWebhookSource))
}

func (a ExternalAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	order := unwrap(payload, "order")
	orderID := firstString(
		readString(order, "external_order_id"),
		readString(order, "id"),
		readString(payload, "external_order_id"),
	)
	if orderID == "" {
		return nil, fmt.Errorf("%w: external_order_id is required", ErrMalformedPayload)
	}
	source := externalSource(firstString(readString(payload, "source"), readString(order, "source"), a.SourceHint(in)))

	var address Address
	composed := readString(order, "shipping_address")
	if addressRaw := readMap(order, "shipping_address"); addressRaw != nil {
		address = Address{
			Line1:      firstString(readString(addressRaw, "line1"), readString(addressRaw, "street")),
			Line2:      readString(addressRaw, "line2"),
			City:       readString(addressRaw, "city"),
			Region:     readString(addressRaw, "region"),
			PostalCode: firstString(readString(addressRaw, "postal_code"), readString(addressRaw, "zip")),
			Country:    readString(addressRaw, "country"),
		}
		composed = address.Compose()
	}
	if city := readString(order, "city"); city != "" && address.City == "" {
		address.City = city
	}
	providerStatus := strings.ToLower(readString(order, "status"))
	return &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  source,
		OrderNumber:     firstString(readString(order, "order_number"), readString(order, "number"), orderID),
		CustomerEmail:   firstString(readString(order, "customer_email"), readString(order, "customer", "email")),
		CustomerName:    firstString(readString(order, "customer_name"), readString(order, "customer", "name")),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           firstMoney(readMoney(order, "total"), readMoney(order, "order_value")),
		Currency:        readString(order, "currency"),
		ProviderStatus:  providerStatus,
		Status:          externalStatusTable[providerStatus],
	}, nil
}

func externalSource(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, constants.ProviderExternal+":")
	return buildSource(constants.ProviderExternal, value)
}
