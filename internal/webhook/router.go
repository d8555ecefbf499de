package webhook

import (
	"fmt"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// Action 主题对应的生命周期动作
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	// ActionIgnore 仅用于审计记录，表示未订阅的主题
	ActionIgnore Action = "ignored"
)

// Route 路由结果
type Route struct {
	Provider string
	Topic    string
	Action   Action
}

// Resolve 结合报文映射的规范状态得到最终动作
// update 携带 completed/cancelled 时分别走完成与取消流程
func (r Route) Resolve(order *NormalizedOrder) Action {
	if r.Action != ActionUpdate || order == nil {
		return r.Action
	}
	switch order.Status {
	case constants.DeliveryStatusCompleted:
		return ActionComplete
	case constants.DeliveryStatusCancelled:
		return ActionCancel
	default:
		return ActionUpdate
	}
}

type routeKey struct {
	provider string
	topic    string
}

var routeTable = map[routeKey]Action{
	{constants.ProviderShopify, "orders/create"}:    ActionCreate,
	{constants.ProviderShopify, "orders/updated"}:   ActionUpdate,
	{constants.ProviderShopify, "orders/paid"}:      ActionUpdate,
	{constants.ProviderShopify, "orders/fulfilled"}: ActionComplete,
	{constants.ProviderShopify, "orders/cancelled"}: ActionCancel,

	{constants.ProviderWooCommerce, "order.created"}:  ActionCreate,
	{constants.ProviderWooCommerce, "order.updated"}:  ActionUpdate,
	{constants.ProviderWooCommerce, "order.deleted"}:  ActionCancel,
	{constants.ProviderWooCommerce, "order.restored"}: ActionUpdate,

	{constants.ProviderStripe, "checkout.session.completed"}: ActionCreate,
	{constants.ProviderStripe, "checkout.session.expired"}:   ActionCancel,
	{constants.ProviderStripe, "charge.refunded"}:            ActionCancel,

	{constants.ProviderMagento, "order.created"}:   ActionCreate,
	{constants.ProviderMagento, "order.updated"}:   ActionUpdate,
	{constants.ProviderMagento, "order.completed"}: ActionComplete,
	{constants.ProviderMagento, "order.cancelled"}: ActionCancel,

	{constants.ProviderPrestaShop, "order.created"}:        ActionCreate,
	{constants.ProviderPrestaShop, "order.status_updated"}: ActionUpdate,

	{constants.ProviderOpenCart, "order.created"}:       ActionCreate,
	{constants.ProviderOpenCart, "order.history_added"}: ActionUpdate,

	{constants.ProviderWix, "order.created"}:   ActionCreate,
	{constants.ProviderWix, "order.updated"}:   ActionUpdate,
	{constants.ProviderWix, "order.fulfilled"}: ActionComplete,
	{constants.ProviderWix, "order.canceled"}:  ActionCancel,

	{constants.ProviderSquarespace, "order.create"}: ActionCreate,
	{constants.ProviderSquarespace, "order.update"}: ActionUpdate,

	{constants.ProviderExternal, "order.created"}:   ActionCreate,
	{constants.ProviderExternal, "order.updated"}:   ActionUpdate,
	{constants.ProviderExternal, "order.completed"}: ActionComplete,
	{constants.ProviderExternal, "order.cancelled"}: ActionCancel,
}

// Router (provider, topic) 到动作的静态路由表
type Router struct {
	table map[routeKey]Action
}

// NewRouter 创建路由器
func NewRouter() *Router {
	return &Router{table: routeTable}
}

// Route 查找路由，未订阅的组合返回 false
func (r *Router) Route(provider, topic string) (Route, bool) {
	key := routeKey{
		provider: strings.ToLower(strings.TrimSpace(provider)),
		topic:    strings.ToLower(strings.TrimSpace(topic)),
	}
	action, ok := r.table[key]
	if !ok {
		return Route{Provider: key.provider, Topic: key.topic, Action: ActionIgnore}, false
	}
	return Route{Provider: key.provider, Topic: key.topic, Action: action}, true
}

// Lookup 查找路由，未订阅时返回 ErrUnsupportedTopic
func (r *Router) Lookup(provider, topic string) (Route, error) {
	route, ok := r.Route(provider, topic)
	if !ok {
		return route, fmt.Errorf("%w: %s %s", ErrUnsupportedTopic, route.Provider, route.Topic)
	}
	return route, nil
}

// Topics 返回提供方已订阅的主题
func (r *Router) Topics(provider string) []string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	topics := make([]string, 0)
	for key := range r.table {
		if key.provider == provider {
			topics = append(topics, key.topic)
		}
	}
	return topics
}
