package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// WixAdapter Wix eCommerce 订单事件，订单位于 data.order
type WixAdapter struct{}

func (WixAdapter) Provider() string { return constants.ProviderWix }

func (WixAdapter) SignatureHeaders() []string { return []string{HeaderWebhookSignature} }

func (WixAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWebhookTopic, payload, "eventType")
}

func (WixAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(in.Header(HeaderWebhookSource))
}

func (a WixAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	order := firstMap(readMap(payload, "data", "order"), readMap(payload, "order"))
	if order == nil {
		order = payload
	}
	orderID := readString(order, "id")
	if orderID == "" {
		return nil, fmt.Errorf("%w: wix order id is required", ErrMalformedPayload)
	}
	source := firstString(a.SourceHint(in), readString(payload, "instanceId"))

	destination := readMap(order, "shippingInfo", "logistics", "shippingDestination")
	addressRaw := firstMap(readMap(destination, "address"), readMap(order, "billingInfo", "address"))
	address := Address{
		Line1:      firstString(readString(addressRaw, "addressLine1"), readString(addressRaw, "addressLine")),
		Line2:      readString(addressRaw, "addressLine2"),
		City:       readString(addressRaw, "city"),
		Region:     readString(addressRaw, "subdivision"),
		PostalCode: readString(addressRaw, "postalCode"),
		Country:    readString(addressRaw, "country"),
	}
	composed := address.Compose()
	contact := firstMap(readMap(destination, "contactDetails"), readMap(order, "billingInfo", "contactDetails"))
	providerStatus, status := wixStatus(order)
	return &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), source),
		OrderNumber:     firstString(readString(order, "number"), orderID),
		CustomerEmail:   firstString(readString(order, "buyerInfo", "email"), readString(order, "buyerEmail")),
		CustomerName:    joinName(readString(contact, "firstName"), readString(contact, "lastName")),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           firstMoney(readMoney(order, "priceSummary", "total", "amount"), readMoney(order, "totals", "total")),
		Currency:        readString(order, "currency"),
		ProviderStatus:  providerStatus,
		Status:          status,
	}, nil
}

// wixStatus 订单状态 CANCELED 优先，其次看履约状态
func wixStatus(order map[string]interface{}) (string, string) {
	orderStatus := strings.ToUpper(readString(order, "status"))
	fulfillment := strings.ToUpper(readString(order, "fulfillmentStatus"))
	switch {
	case orderStatus == "CANCELED":
		return orderStatus, constants.DeliveryStatusCancelled
	case fulfillment == "FULFILLED":
		return fulfillment, constants.DeliveryStatusCompleted
	case fulfillment != "":
		return fulfillment, constants.DeliveryStatusPending
	case orderStatus != "":
		return orderStatus, constants.DeliveryStatusPending
	}
	return "", ""
}
