package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// WooCommerce 请求头
const (
	HeaderWooSignature = "X-WC-Webhook-Signature"
	HeaderWooTopic     = "X-WC-Webhook-Topic"
	HeaderWooSource    = "X-WC-Webhook-Source"
)

var wooStatusTable = map[string]string{
	"pending":    constants.DeliveryStatusPending,
	"processing": constants.DeliveryStatusPending,
	"on-hold":    constants.DeliveryStatusPending,
	"completed":  constants.DeliveryStatusCompleted,
	"cancelled":  constants.DeliveryStatusCancelled,
	"refunded":   constants.DeliveryStatusCancelled,
	"failed":     constants.DeliveryStatusCancelled,
	"trash":      constants.DeliveryStatusCancelled,
}

// WooCommerceAdapter WooCommerce 订单 webhook
type WooCommerceAdapter struct{}

func (WooCommerceAdapter) Provider() string { return constants.ProviderWooCommerce }

func (WooCommerceAdapter) SignatureHeaders() []string { return []string{HeaderWooSignature} }

func (WooCommerceAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWooTopic, nil)
}

// SourceHint X-WC-Webhook-Source 为站点 URL，取其主机名
func (WooCommerceAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(hostOf(in.Header(HeaderWooSource)))
}

func (a WooCommerceAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	orderID := readString(payload, "id")
	if orderID == "" {
		return nil, fmt.Errorf("%w: woocommerce order id is required", ErrMalformedPayload)
	}
	address := Address{
		Line1:      readString(payload, "shipping", "address_1"),
		Line2:      readString(payload, "shipping", "address_2"),
		City:       readString(payload, "shipping", "city"),
		Region:     readString(payload, "shipping", "state"),
		PostalCode: readString(payload, "shipping", "postcode"),
		Country:    readString(payload, "shipping", "country"),
	}
	composed := address.Compose()
	providerStatus := strings.ToLower(readString(payload, "status"))
	return &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), a.SourceHint(in)),
		OrderNumber:     firstString(readString(payload, "number"), orderID),
		CustomerEmail:   readString(payload, "billing", "email"),
		CustomerName: firstString(
			joinName(readString(payload, "shipping", "first_name"), readString(payload, "shipping", "last_name")),
			joinName(readString(payload, "billing", "first_name"), readString(payload, "billing", "last_name")),
		),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           readMoney(payload, "total"),
		Currency:        readString(payload, "currency"),
		ProviderStatus:  providerStatus,
		Status:          wooStatusTable[providerStatus],
	}, nil
}
