package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/models"
	"notification-engine/internal/snapshot"
)

// priceDropFactor: a price must fall strictly below stored*factor to notify
const priceDropFactor = 0.95

// Price diffs wishlist prices against the last observed price.
type Price struct {
	deps     Deps
	history  *snapshot.PriceHistory
	interval time.Duration
}

// NewPrice creates the wishlist price drop monitor
func NewPrice(deps Deps, history *snapshot.PriceHistory, interval time.Duration) *Price {
	return &Price{deps: deps, history: history, interval: withInterval(interval, DefaultPriceInterval)}
}

func (m *Price) Name() string            { return NamePrice }
func (m *Price) Interval() time.Duration { return m.interval }

// Tick notifies on drops of more than five percent and records every price seen
func (m *Price) Tick(ctx context.Context) Result {
	token, res := m.deps.token(ctx, NamePrice)
	if res != nil {
		return *res
	}

	items, err := m.deps.Backend.GetWishlist(ctx, token)
	if err != nil {
		return failed(NamePrice, fmt.Errorf("failed to fetch wishlist: %w", err))
	}
	if len(items) == 0 {
		return skipped(NamePrice, ReasonEmptyWishlist)
	}

	prices, err := m.history.Load(ctx)
	if err := m.deps.reseed(NamePrice, err); err != nil {
		return failed(NamePrice, fmt.Errorf("failed to load price history: %w", err))
	}

	notified := 0
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		current := item.EffectivePrice()
		if stored, seen := prices[item.ProductID]; seen && current < stored*priceDropFactor {
			m.deps.Dispatcher.Dispatch(ctx, priceDropNotification(item, stored, current))
			notified++
		}
		prices[item.ProductID] = current
	}

	if err := m.history.Save(ctx, prices); err != nil {
		return failed(NamePrice, fmt.Errorf("failed to save price history: %w", err))
	}
	if notified > 0 {
		m.deps.Logger.Info("Price drops detected", zap.Int("count", notified))
	}
	return ok(NamePrice, notified)
}

func discountPercent(stored, current float64) int {
	return int(math.Round((stored - current) / stored * 100))
}

func priceDropNotification(item models.WishlistItem, stored, current float64) models.Notification {
	pct := discountPercent(stored, current)
	return models.Notification{
		Type:  models.NotificationTypePriceDrop,
		Title: "Price Drop Alert!",
		Body:  fmt.Sprintf("%s is now $%.2f (was $%.2f). Save %d%%!", item.Name, current, stored, pct),
		Data: map[string]any{
			"type":            models.NotificationTypePriceDrop,
			"productId":       item.ProductID,
			"oldPrice":        stored,
			"newPrice":        current,
			"discountPercent": pct,
		},
	}
}
