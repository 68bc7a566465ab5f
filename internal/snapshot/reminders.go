package snapshot

import (
	"context"
	"time"

	"notification-engine/internal/kvstore"
)

// CartTier is one escalation level of the cart abandonment reminder
type CartTier string

const (
	CartTier30Min  CartTier = "30min"
	CartTier2Hour  CartTier = "2hour"
	CartTier24Hour CartTier = "24hour"
)

// CartTiers lists the tiers from the lowest threshold up
var CartTiers = []CartTier{CartTier30Min, CartTier2Hour, CartTier24Hour}

// EngagementTier is one level of the re-engagement reminder
type EngagementTier string

const (
	EngagementTier48Hour EngagementTier = "48hour"
	EngagementTierWeekly EngagementTier = "weekly"
)

// CartState holds the idle clock and the per-tier "already fired" markers
type CartState struct {
	kv kvstore.Store
}

// NewCartState creates the cart timestamp and tier marker view
func NewCartState(kv kvstore.Store) *CartState {
	return &CartState{kv: kv}
}

func (c *CartState) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	return getTime(ctx, c.kv, KeyLastCartUpdate)
}

func (c *CartState) SetLastUpdate(ctx context.Context, t time.Time) error {
	return setTime(ctx, c.kv, KeyLastCartUpdate, t)
}

func (c *CartState) Marker(ctx context.Context, tier CartTier) (time.Time, bool, error) {
	return getTime(ctx, c.kv, keyCartReminder+string(tier))
}

func (c *CartState) SetMarker(ctx context.Context, tier CartTier, t time.Time) error {
	return setTime(ctx, c.kv, keyCartReminder+string(tier), t)
}

// ClearMarkers removes all three tier markers
func (c *CartState) ClearMarkers(ctx context.Context) error {
	keys := make([]string, 0, len(CartTiers))
	for _, tier := range CartTiers {
		keys = append(keys, keyCartReminder+string(tier))
	}
	return c.kv.Delete(ctx, keys...)
}

// Engagement holds the last foreground activation and re-engagement markers
type Engagement struct {
	kv kvstore.Store
}

// NewEngagement creates the app-open timestamp and engagement marker view
func NewEngagement(kv kvstore.Store) *Engagement {
	return &Engagement{kv: kv}
}

func (e *Engagement) LastAppOpen(ctx context.Context) (time.Time, bool, error) {
	return getTime(ctx, e.kv, KeyLastAppOpen)
}

func (e *Engagement) SetLastAppOpen(ctx context.Context, t time.Time) error {
	return setTime(ctx, e.kv, KeyLastAppOpen, t)
}

func (e *Engagement) Marker(ctx context.Context, tier EngagementTier) (time.Time, bool, error) {
	return getTime(ctx, e.kv, keyEngagementReminder+string(tier))
}

func (e *Engagement) SetMarker(ctx context.Context, tier EngagementTier, t time.Time) error {
	return setTime(ctx, e.kv, keyEngagementReminder+string(tier), t)
}

// Stale reports whether a marker is absent or at least cooldown old at now.
func Stale(marker time.Time, ok bool, now time.Time, cooldown time.Duration) bool {
	return !ok || now.Sub(marker) >= cooldown
}
