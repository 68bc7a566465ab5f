package models

import "time"

// CartItem is one line of the user's cart as returned by GET /user/get-cart
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// WishlistItem is one entry of GET /user/get-wishlist
type WishlistItem struct {
	ProductID     string   `json:"productId"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discountprice,omitempty"`
}

// EffectivePrice prefers a positive discount price over the list price.
func (w WishlistItem) EffectivePrice() float64 {
	if w.DiscountPrice != nil && *w.DiscountPrice > 0 {
		return *w.DiscountPrice
	}
	return w.Price
}

// Order is one entry of GET /order/my-orders
type Order struct {
	ID          string `json:"_id"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
}

// Product is the live detail record of GET /product/get-product/{id}
type Product struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Notification types carried in the data payload of every dispatch
const (
	NotificationTypeCartAbandonment = "cart_abandonment"
	NotificationTypePriceDrop       = "price_drop"
	NotificationTypeOrderStatus     = "order_status"
	NotificationTypeBackInStock     = "back_in_stock"
	NotificationTypeReEngagement    = "re_engagement"
)

// Notification is what a monitor hands to the dispatcher
type Notification struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
}

// RelayNotification is the body of POST /notifications/send
type RelayNotification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Type  string         `json:"type"`
	Data  map[string]any `json:"data"`
}

// OrderRelayNotification is the body of POST /notifications/send-order
type OrderRelayNotification struct {
	OrderID string `json:"orderId"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// DispatchRecord is the audit row written for every dispatch
type DispatchRecord struct {
	NotificationID string    `db:"notification_id" json:"notification_id"`
	Type           string    `db:"type" json:"type"`
	Title          string    `db:"title" json:"title"`
	Body           string    `db:"body" json:"body"`
	LocalError     string    `db:"local_error" json:"local_error,omitempty"`
	RelayError     string    `db:"relay_error" json:"relay_error,omitempty"`
	DispatchedAt   time.Time `db:"dispatched_at" json:"dispatched_at"`
}

// AppState is an application lifecycle state reported by the host
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)

// Valid reports whether s is one of the known lifecycle states
func (s AppState) Valid() bool {
	switch s {
	case AppStateActive, AppStateBackground, AppStateInactive:
		return true
	}
	return false
}
