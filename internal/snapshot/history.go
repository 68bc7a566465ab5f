package snapshot

import (
	"context"
	"sort"

	"notification-engine/internal/kvstore"
)

// PriceHistory maps product id to the last observed effective price
type PriceHistory struct {
	kv kvstore.Store
}

// NewPriceHistory creates the last-seen price map view
func NewPriceHistory(kv kvstore.Store) *PriceHistory {
	return &PriceHistory{kv: kv}
}

// Load never returns a nil map. On ErrCorrupt the map is empty.
func (p *PriceHistory) Load(ctx context.Context) (map[string]float64, error) {
	m := map[string]float64{}
	if err := getJSON(ctx, p.kv, KeyPriceHistory, &m); err != nil {
		return map[string]float64{}, err
	}
	if m == nil {
		m = map[string]float64{}
	}
	return m, nil
}

func (p *PriceHistory) Save(ctx context.Context, m map[string]float64) error {
	return setJSON(ctx, p.kv, KeyPriceHistory, m)
}

// OrderStatuses maps order id to the last observed status
type OrderStatuses struct {
	kv kvstore.Store
}

// NewOrderStatuses creates the last-seen order status map view
func NewOrderStatuses(kv kvstore.Store) *OrderStatuses {
	return &OrderStatuses{kv: kv}
}

func (o *OrderStatuses) Load(ctx context.Context) (map[string]string, error) {
	m := map[string]string{}
	if err := getJSON(ctx, o.kv, KeyOrderStatuses, &m); err != nil {
		return map[string]string{}, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func (o *OrderStatuses) Save(ctx context.Context, m map[string]string) error {
	return setJSON(ctx, o.kv, KeyOrderStatuses, m)
}

// OutOfStock is the set of wishlist product ids last seen with zero stock.
// It persists as a sorted JSON array.
type OutOfStock struct {
	kv kvstore.Store
}

// NewOutOfStock creates the out-of-stock product set view
func NewOutOfStock(kv kvstore.Store) *OutOfStock {
	return &OutOfStock{kv: kv}
}

func (o *OutOfStock) Load(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := getJSON(ctx, o.kv, KeyOutOfStockItems, &ids); err != nil {
		return map[string]struct{}{}, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (o *OutOfStock) Save(ctx context.Context, set map[string]struct{}) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return setJSON(ctx, o.kv, KeyOutOfStockItems, ids)
}
