package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// HeaderSquarespaceSignature Squarespace 通知签名头
const HeaderSquarespaceSignature = "Squarespace-Signature"

var squarespaceStatusTable = map[string]string{
	"PENDING":   constants.DeliveryStatusPending,
	"FULFILLED": constants.DeliveryStatusCompleted,
	"CANCELED":  constants.DeliveryStatusCancelled,
}

// SquarespaceAdapter Squarespace 订单通知
type SquarespaceAdapter struct{}

func (SquarespaceAdapter) Provider() string { return constants.ProviderSquarespace }

func (SquarespaceAdapter) SignatureHeaders() []string {
	return []string{HeaderSquarespaceSignature, HeaderWebhookSignature}
}

func (SquarespaceAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	return topicFrom(in, HeaderWebhookTopic, payload, "topic")
}

func (SquarespaceAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(in.Header(HeaderWebhookSource))
}

func (a SquarespaceAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	data := firstMap(readMap(payload, "data"), payload)
	orderID := firstString(readString(data, "orderId"), readString(data, "id"))
	if orderID == "" {
		return nil, fmt.Errorf("%w: squarespace orderId is required", ErrMalformedPayload)
	}
	source := firstString(a.SourceHint(in), readString(payload, "websiteId"))

	addressRaw := readMap(data, "shippingAddress")
	address := Address{
		Line1:      readString(addressRaw, "address1"),
		Line2:      readString(addressRaw, "address2"),
		City:       readString(addressRaw, "city"),
		Region:     readString(addressRaw, "state"),
		PostalCode: readString(addressRaw, "postalCode"),
		Country:    readString(addressRaw, "countryCode"),
	}
	composed := address.Compose()
	providerStatus := strings.ToUpper(firstString(readString(data, "fulfillmentStatus"), readString(data, "update")))
	return &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), source),
		OrderNumber:     firstString(readString(data, "orderNumber"), orderID),
		CustomerEmail:   readString(data, "customerEmail"),
		CustomerName:    joinName(readString(addressRaw, "firstName"), readString(addressRaw, "lastName")),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Total:           readMoney(data, "grandTotal", "value"),
		Currency:        readString(data, "grandTotal", "currency"),
		ProviderStatus:  providerStatus,
		Status:          squarespaceStatusTable[providerStatus],
	}, nil
}
