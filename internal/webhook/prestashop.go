package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// PrestaShop 默认订单状态 ID
var prestaShopStateTable = map[int64]string{
	5: constants.DeliveryStatusCompleted, // 已送达
	6: constants.DeliveryStatusCancelled, // 已取消
	7: constants.DeliveryStatusCancelled, // 已退款
	8: constants.DeliveryStatusCancelled, // 支付错误
}

// PrestaShopAdapter PrestaShop 订单 webhook
type PrestaShopAdapter struct{}

func (PrestaShopAdapter) Provider() string { return constants.ProviderPrestaShop }

func (PrestaShopAdapter) SignatureHeaders() []string { return []string{HeaderWebhookSignature} }

func (PrestaShopAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWebhookTopic, payload, "topic", "event")
}

func (PrestaShopAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(hostOf(in.Header(HeaderWebhookSource)))
}

func (a PrestaShopAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	order := unwrap(payload, "order")
	orderID := firstString(readString(order, "id_order"), readString(order, "id"))
	if orderID == "" {
		return nil, fmt.Errorf("%w: prestashop id_order is required", ErrMalformedPayload)
	}
	source := firstString(a.SourceHint(in), hostOf(readString(payload, "shop_domain")), hostOf(readString(order, "shop_domain")))

	addressRaw := firstMap(readMap(payload, "address_delivery"), readMap(order, "address_delivery"))
	address := Address{
		Line1:      readString(addressRaw, "address1"),
		Line2:      readString(addressRaw, "address2"),
		City:       readString(addressRaw, "city"),
		PostalCode: readString(addressRaw, "postcode"),
		Country:    readString(addressRaw, "country"),
	}
	composed := address.Compose()
	customer := firstMap(readMap(payload, "customer"), readMap(order, "customer"))

	normalized := &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), strings.ToLower(source)),
		OrderNumber:     firstString(readString(order, "reference"), orderID),
		CustomerEmail:   firstString(readString(customer, "email"), readString(order, "customer_email")),
		CustomerName: firstString(
			joinName(readString(addressRaw, "firstname"), readString(addressRaw, "lastname")),
			joinName(readString(customer, "firstname"), readString(customer, "lastname")),
		),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           readMoney(order, "total_paid"),
		Currency:        firstString(readString(payload, "currency", "iso_code"), readString(order, "currency")),
	}
	if state, ok := readInt64(order, "current_state"); ok {
		normalized.ProviderStatus = fmt.Sprintf("current_state=%d", state)
		normalized.Status = prestaShopStatus(state)
	}
	return normalized, nil
}

func prestaShopStatus(state int64) string {
	if mapped, ok := prestaShopStateTable[state]; ok {
		return mapped
	}
	return constants.DeliveryStatusPending
}
