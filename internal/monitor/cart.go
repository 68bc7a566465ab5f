package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notification-engine/internal/models"
	"notification-engine/internal/snapshot"
)

// CartReminderCooldown is how long a fired cart tier stays quiet
const CartReminderCooldown = 24 * time.Hour

var cartTierThresholds = map[snapshot.CartTier]time.Duration{
	snapshot.CartTier30Min:  30 * time.Minute,
	snapshot.CartTier2Hour:  2 * time.Hour,
	snapshot.CartTier24Hour: 24 * time.Hour,
}

var cartTierTitles = map[snapshot.CartTier]string{
	snapshot.CartTier30Min:  "You left something behind!",
	snapshot.CartTier2Hour:  "Your cart is waiting",
	snapshot.CartTier24Hour: "Last chance to complete your order",
}

var cartTierBodies = map[snapshot.CartTier]string{
	snapshot.CartTier30Min:  "You have %d item(s) in your cart: %s. Total: $%.2f",
	snapshot.CartTier2Hour:  "Still thinking it over? Your %d item(s) (%s) are waiting. Total: $%.2f",
	snapshot.CartTier24Hour: "Don't miss out! %d item(s) in your cart: %s. Complete your $%.2f order now.",
}

// Cart escalates through three reminder tiers while the cart sits idle.
type Cart struct {
	deps     Deps
	state    *snapshot.CartState
	interval time.Duration
}

// NewCart creates the abandoned cart monitor
func NewCart(deps Deps, state *snapshot.CartState, interval time.Duration) *Cart {
	return &Cart{deps: deps, state: state, interval: withInterval(interval, DefaultCartInterval)}
}

func (m *Cart) Name() string            { return NameCart }
func (m *Cart) Interval() time.Duration { return m.interval }

// Tick sends at most one reminder, for the lowest due tier
func (m *Cart) Tick(ctx context.Context) Result {
	token, res := m.deps.token(ctx, NameCart)
	if res != nil {
		return *res
	}

	items, err := m.deps.Backend.GetCart(ctx, token)
	if err != nil {
		return failed(NameCart, fmt.Errorf("failed to fetch cart: %w", err))
	}

	if len(items) == 0 {
		if err := m.state.ClearMarkers(ctx); err != nil {
			return failed(NameCart, fmt.Errorf("failed to clear reminders: %w", err))
		}
		return skipped(NameCart, ReasonEmptyCart)
	}

	last, found, err := m.state.LastUpdate(ctx)
	if err != nil {
		return failed(NameCart, fmt.Errorf("failed to read cart snapshot: %w", err))
	}
	if !found {
		return skipped(NameCart, ReasonNoCartSnap)
	}

	now := m.deps.now()
	idle := now.Sub(last)

	// one tier per tick, lowest threshold first
	for _, tier := range snapshot.CartTiers {
		if idle < cartTierThresholds[tier] {
			continue
		}
		marker, marked, err := m.state.Marker(ctx, tier)
		if err != nil {
			return failed(NameCart, fmt.Errorf("failed to read %s reminder: %w", tier, err))
		}
		if !snapshot.Stale(marker, marked, now, CartReminderCooldown) {
			continue
		}

		m.deps.Dispatcher.Dispatch(ctx, cartNotification(tier, items))
		if err := m.state.SetMarker(ctx, tier, now); err != nil {
			return failed(NameCart, fmt.Errorf("failed to mark %s reminder: %w", tier, err))
		}
		return ok(NameCart, 1)
	}

	return skipped(NameCart, ReasonBelowTier)
}

func cartNotification(tier snapshot.CartTier, items []models.CartItem) models.Notification {
	total := cartTotal(items)
	return models.Notification{
		Type:  models.NotificationTypeCartAbandonment,
		Title: cartTierTitles[tier],
		Body:  fmt.Sprintf(cartTierBodies[tier], len(items), itemSummary(items, 3), total),
		Data: map[string]any{
			"type":      models.NotificationTypeCartAbandonment,
			"tier":      string(tier),
			"itemCount": len(items),
			"cartTotal": total,
		},
	}
}

func cartTotal(items []models.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// itemSummary names at most limit items, then "and N more".
func itemSummary(items []models.CartItem, limit int) string {
	names := make([]string, 0, limit)
	for i, it := range items {
		if i == limit {
			break
		}
		names = append(names, it.Name)
	}
	summary := strings.Join(names, ", ")
	if extra := len(items) - len(names); extra > 0 {
		summary += fmt.Sprintf(" and %d more", extra)
	}
	return summary
}
