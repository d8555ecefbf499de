package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
)

// HeaderStripeSignature Stripe 签名头
const HeaderStripeSignature = "Stripe-Signature"

// defaultStripeSource 未携带店铺信息时归入单一账户
const defaultStripeSource = "default"

// StripeAdapter Stripe 支付事件，data.object 为 checkout session 或 charge
type StripeAdapter struct{}

func (StripeAdapter) Provider() string { return constants.ProviderStripe }

func (StripeAdapter) SignatureHeaders() []string {
	return []string{HeaderStripeSignature}
}

func (StripeAdapter) ResolveTopic(in Inbound, payload map[string]interface{}) string {
	if eventType := readString(payload, "type"); eventType != "" {
		return strings.ToLower(eventType)
	}
	return strings.ToLower(strings.TrimSpace(in.Topic))
}

func (StripeAdapter) SourceHint(in Inbound) string {
	return strings.ToLower(in.Header(HeaderWebhookSource))
}

func (a StripeAdapter) Normalize(in Inbound, payload map[string]interface{}) (*NormalizedOrder, error) {
	object := readMap(payload, "data", "object")
	if object == nil {
		return nil, fmt.Errorf("%w: stripe data.object is required", ErrMalformedPayload)
	}
	objectType := readString(object, "object")
	orderID := firstString(
		readString(object, "metadata", "order_id"),
		readString(object, "client_reference_id"),
	)
	if orderID == "" {
		if objectType == "charge" {
			orderID = readString(object, "payment_intent")
		} else {
			orderID = readString(object, "id")
		}
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: stripe order reference is required", ErrMalformedPayload)
	}
	// 请求头决定验签密钥，优先于报文中的 metadata.shop
	source := firstString(
		a.SourceHint(in),
		readString(object, "metadata", "shop"),
		readString(payload, "account"),
		defaultStripeSource,
	)

	shipping := firstMap(
		readMap(object, "collected_information", "shipping_details"),
		readMap(object, "shipping_details"),
		readMap(object, "shipping"),
	)
	addressRaw := firstMap(readMap(shipping, "address"), readMap(object, "customer_details", "address"), readMap(object, "billing_details", "address"))
	address := Address{
		Line1:      readString(addressRaw, "line1"),
		Line2:      readString(addressRaw, "line2"),
		City:       readString(addressRaw, "city"),
		Region:     readString(addressRaw, "state"),
		PostalCode: readString(addressRaw, "postal_code"),
		Country:    readString(addressRaw, "country"),
	}
	composed := address.Compose()

	currency := readString(object, "currency")
	order := &NormalizedOrder{
		ExternalOrderID: orderID,
		ExternalSource:  buildSource(a.Provider(), source),
		OrderNumber:     firstString(readString(object, "metadata", "order_number"), orderID),
		CustomerEmail: firstString(
			readString(object, "customer_details", "email"),
			readString(object, "customer_email"),
			readString(object, "receipt_email"),
			readString(object, "billing_details", "email"),
		),
		CustomerName: firstString(
			readString(shipping, "name"),
			readString(object, "customer_details", "name"),
			readString(object, "billing_details", "name"),
		),
		ShippingAddress: composed,
		DeliveryCity:    resolveCity(address, composed),
		Currency:        currency,
	}
	amountKey := "amount_total"
	if objectType == "charge" {
		amountKey = "amount"
	}
	if minor, ok := readInt64(object, amountKey); ok {
		total := models.NewMoneyFromMinorUnits(minor, currency)
		order.Total = &total
	}
	order.ProviderStatus, order.Status = stripeStatus(readString(payload, "type"), object)
	return order, nil
}

func stripeStatus(eventType string, object map[string]interface{}) (string, string) {
	switch strings.ToLower(eventType) {
	case "checkout.session.expired":
		return "expired", constants.DeliveryStatusCancelled
	case "charge.refunded":
		return "refunded", constants.DeliveryStatusCancelled
	}
	paymentStatus := strings.ToLower(readString(object, "payment_status"))
	if paymentStatus == "" {
		return strings.ToLower(readString(object, "status")), constants.DeliveryStatusPending
	}
	return paymentStatus, constants.DeliveryStatusPending
}
