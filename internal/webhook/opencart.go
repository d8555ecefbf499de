package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// OpenCart 默认 order_status_id
var openCartStatusTable = map[int64]string{
	5:  constants.DeliveryStatusCompleted, // Complete
	7:  constants.DeliveryStatusCancelled, // Canceled
	8:  constants.DeliveryStatusCancelled, // Denied
	10: constants.DeliveryStatusCancelled, // Failed
	11: constants.DeliveryStatusCancelled, // Refunded
	14: constants.DeliveryStatusCancelled, // Expired
	16: constants.DeliveryStatusCancelled, // Voided
}

// OpenCartAdapter OpenCart 订单 webhook，字段沿用 order_info 扁平结构
type OpenCartAdapter struct{}

func (OpenCartAdapter) Provider() string { return constants.ProviderOpenCart }

func (OpenCartAdapter) SignatureHeaders() []string { return []string{HeaderWebhookSignature} }

func (OpenCartAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWebhookTopic, payload, "topic", "event")
}

func (OpenCartAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(hostOf(in.Header(HeaderWebhookSource)))
}

func (a OpenCartAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	order := unwrap(payload, "order")
	orderID := readString(order, "order_id")
	if orderID == "" {
		return nil, fmt.Errorf("%w: opencart order_id is required", ErrMalformedPayload)
	}
	source := firstString(a.SourceHint(in), hostOf(readString(order, "store_url")), hostOf(readString(payload, "store_url")))
	address := Address{
		Line1:      readString(order, "shipping_address_1"),
		Line2:      readString(order, "shipping_address_2"),
		City:       readString(order, "shipping_city"),
		Region:     readString(order, "shipping_zone"),
		PostalCode: readString(order, "shipping_postcode"),
		Country:    readString(order, "shipping_country"),
	}
	composed := address.Compose()
	normalized := &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), strings.ToLower(source)),
		OrderNumber:     openCartOrderNumber(order, orderID),
		CustomerEmail:   readString(order, "email"),
		CustomerName: firstString(
			joinName(readString(order, "shipping_firstname"), readString(order, "shipping_lastname")),
			joinName(readString(order, "firstname"), readString(order, "lastname")),
		),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           readMoney(order, "total"),
		Currency:        readString(order, "currency_code"),
	}
	if statusID, ok := readInt64(order, "order_status_id"); ok && statusID > 0 {
		normalized.ProviderStatus = "order_status_id=" + strconv.FormatInt(statusID, 10)
		normalized.Status = openCartStatus(statusID)
	}
	return normalized, nil
}

func openCartStatus(statusID int64) string {
	if mapped, ok := openCartStatusTable[statusID]; ok {
		return mapped
	}
	return constants.DeliveryStatusPending
}

// openCartOrderNumber 已开票时使用发票号，否则使用订单 ID
func openCartOrderNumber(order map[string]interface{}, orderID string) string {
	if invoiceNo, ok := readInt64(order, "invoice_no"); ok && invoiceNo > 0 {
		return readString(order, "invoice_prefix") + strconv.FormatInt(invoiceNo, 10)
	}
	return orderID
}
