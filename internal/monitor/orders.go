package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notification-engine/internal/models"
	"notification-engine/internal/snapshot"
)

type orderMessage struct {
	title string
	body  string
}

// orderMessages covers the statuses worth telling the user about
var orderMessages = map[string]orderMessage{
	"processing": {"Order Processing", "Your order #%s is now being processed."},
	"shipped":    {"Order Shipped!", "Great news! Your order #%s is on its way."},
	"delivered":  {"Order Delivered", "Your order #%s has been delivered. Enjoy!"},
	"cancelled":  {"Order Cancelled", "Your order #%s has been cancelled."},
}

// Orders diffs order statuses against the last observed status.
type Orders struct {
	deps     Deps
	statuses *snapshot.OrderStatuses
	interval time.Duration
}

// NewOrders creates the order status monitor
func NewOrders(deps Deps, statuses *snapshot.OrderStatuses, interval time.Duration) *Orders {
	return &Orders{deps: deps, statuses: statuses, interval: withInterval(interval, DefaultOrdersInterval)}
}

func (m *Orders) Name() string            { return NameOrders }
func (m *Orders) Interval() time.Duration { return m.interval }

// Tick notifies for every known order whose status moved to a tracked one
func (m *Orders) Tick(ctx context.Context) Result {
	token, res := m.deps.token(ctx, NameOrders)
	if res != nil {
		return *res
	}

	orders, err := m.deps.Backend.GetMyOrders(ctx, token)
	if err != nil {
		return failed(NameOrders, fmt.Errorf("failed to fetch orders: %w", err))
	}

	known, err := m.statuses.Load(ctx)
	if err := m.deps.reseed(NameOrders, err); err != nil {
		return failed(NameOrders, fmt.Errorf("failed to load order statuses: %w", err))
	}

	notified := 0
	for _, order := range orders {
		if order.ID == "" {
			continue
		}
		previous, seen := known[order.ID]
		known[order.ID] = order.Status
		status := strings.ToLower(order.Status)
		if !seen || strings.ToLower(previous) == status {
			continue
		}

		msg, tracked := orderMessages[status]
		if !tracked {
			continue
		}
		m.deps.Dispatcher.DispatchOrder(ctx, order.ID, status, orderNotification(order, status, msg))
		notified++
	}

	if err := m.statuses.Save(ctx, known); err != nil {
		return failed(NameOrders, fmt.Errorf("failed to save order statuses: %w", err))
	}
	return ok(NameOrders, notified)
}

func orderNotification(order models.Order, status string, msg orderMessage) models.Notification {
	number := order.OrderNumber
	if number == "" {
		number = order.ID
	}
	return models.Notification{
		Type:  models.NotificationTypeOrderStatus,
		Title: msg.title,
		Body:  fmt.Sprintf(msg.body, number),
		Data: map[string]any{
			"type":    models.NotificationTypeOrderStatus,
			"orderId": order.ID,
			"status":  status,
		},
	}
}
