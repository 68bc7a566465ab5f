package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/models"
	"notification-engine/internal/snapshot"
)

// Inventory watches wishlisted products that were out of stock.
// Products are fetched one at a time; pacing comes from the backend client's limiter.
type Inventory struct {
	deps       Deps
	outOfStock *snapshot.OutOfStock
	interval   time.Duration
}

// NewInventory creates the back-in-stock monitor
func NewInventory(deps Deps, outOfStock *snapshot.OutOfStock, interval time.Duration) *Inventory {
	return &Inventory{deps: deps, outOfStock: outOfStock, interval: withInterval(interval, DefaultInventoryInterval)}
}

func (m *Inventory) Name() string            { return NameInventory }
func (m *Inventory) Interval() time.Duration { return m.interval }

// Tick notifies for wishlisted products that came back in stock
func (m *Inventory) Tick(ctx context.Context) Result {
	token, res := m.deps.token(ctx, NameInventory)
	if res != nil {
		return *res
	}

	items, err := m.deps.Backend.GetWishlist(ctx, token)
	if err != nil {
		return failed(NameInventory, fmt.Errorf("failed to fetch wishlist: %w", err))
	}
	if len(items) == 0 {
		return skipped(NameInventory, ReasonEmptyWishlist)
	}

	set, err := m.outOfStock.Load(ctx)
	if err := m.deps.reseed(NameInventory, err); err != nil {
		return failed(NameInventory, fmt.Errorf("failed to load out-of-stock set: %w", err))
	}

	notified := 0
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		product, err := m.deps.Backend.GetProduct(ctx, token, item.ProductID)
		if err != nil {
			m.deps.Logger.Debug("Product fetch failed, treating as out of stock",
				zap.String("product_id", item.ProductID), zap.Error(err))
			set[item.ProductID] = struct{}{}
			continue
		}
		if product.Quantity <= 0 {
			set[item.ProductID] = struct{}{}
			continue
		}
		if _, wasOut := set[item.ProductID]; wasOut {
			m.deps.Dispatcher.Dispatch(ctx, backInStockNotification(item, product))
			delete(set, item.ProductID)
			notified++
		}
	}

	if err := m.outOfStock.Save(ctx, set); err != nil {
		return failed(NameInventory, fmt.Errorf("failed to save out-of-stock set: %w", err))
	}
	return ok(NameInventory, notified)
}

func backInStockNotification(item models.WishlistItem, product *models.Product) models.Notification {
	name := product.Name
	if name == "" {
		name = item.Name
	}
	return models.Notification{
		Type:  models.NotificationTypeBackInStock,
		Title: "Back in Stock!",
		Body:  fmt.Sprintf("%s is back in stock. Grab it before it's gone!", name),
		Data: map[string]any{
			"type":      models.NotificationTypeBackInStock,
			"productId": item.ProductID,
		},
	}
}
