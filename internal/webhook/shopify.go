package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// Shopify 请求头
const (
	HeaderShopifyHmac   = "X-Shopify-Hmac-Sha256"
	HeaderShopifyTopic  = "X-Shopify-Topic"
	HeaderShopifyDomain = "X-Shopify-Shop-Domain"
)

// ShopifyAdapter Shopify 订单 webhook
type ShopifyAdapter struct{}

func (ShopifyAdapter) Provider() string { return constants.ProviderShopify }

func (ShopifyAdapter) SignatureHeaders() []string { return []string{HeaderShopifyHmac} }

func (ShopifyAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderShopifyTopic, nil)
}

func (ShopifyAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(in.Header(HeaderShopifyDomain))
}

func (a ShopifyAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	orderID := readString(payload, "id")
	if orderID == "" {
		return nil, fmt.Errorf("%w: shopify order id is required", ErrMalformedPayload)
	}
	address := Address{
		Line1:      readString(payload, "shipping_address", "address1"),
		Line2:      readString(payload, "shipping_address", "address2"),
		City:       readString(payload, "shipping_address", "city"),
		Region:     readString(payload, "shipping_address", "province"),
		PostalCode: readString(payload, "shipping_address", "zip"),
		Country:    readString(payload, "shipping_address", "country"),
	}
	composed := address.Compose()
	providerStatus, status := shopifyStatus(payload)
	return &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), a.SourceHint(in)),
		OrderNumber:     firstString(readString(payload, "name"), readString(payload, "order_number")),
		CustomerEmail:   firstString(readString(payload, "email"), readString(payload, "contact_email"), readString(payload, "customer", "email")),
		CustomerName: firstString(
			readString(payload, "shipping_address", "name"),
			joinName(readString(payload, "customer", "first_name"), readString(payload, "customer", "last_name")),
		),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           readMoney(payload, "total_price"),
		Currency:        readString(payload, "currency"),
		ProviderStatus:  providerStatus,
		Status:          status,
	}, nil
}

// shopifyStatus 取消优先于履约，其余按支付状态视为待配送
func shopifyStatus(payload map[string]interface{}) (string, string) {
	if readString(payload, "cancelled_at") != "" {
		return "cancelled", constants.DeliveryStatusCancelled
	}
	fulfillment := strings.ToLower(readString(payload, "fulfillment_status"))
	if fulfillment == "fulfilled" {
		return "fulfillment_status=fulfilled", constants.DeliveryStatusCompleted
	}
	if financial := strings.ToLower(readString(payload, "financial_status")); financial != "" {
		switch financial {
		case "refunded", "voided":
			return "financial_status=" + financial, constants.DeliveryStatusCancelled
		}
		return "financial_status=" + financial, constants.DeliveryStatusPending
	}
	if fulfillment != "" {
		return "fulfillment_status=" + fulfillment, constants.DeliveryStatusPending
	}
	return "", ""
}
