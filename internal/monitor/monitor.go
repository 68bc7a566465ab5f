// Package monitor holds the five polling monitors. Each Tick reads a backend
// resource, diffs it against its snapshot and dispatches on state changes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/models"
	"notification-engine/internal/notify"
	"notification-engine/internal/snapshot"
)

// Monitor names
const (
	NameCart       = "cart"
	NamePrice      = "price"
	NameOrders     = "orders"
	NameInventory  = "inventory"
	NameEngagement = "engagement"
)

// Default schedules
const (
	DefaultCartInterval       = 5 * time.Minute
	DefaultPriceInterval      = 30 * time.Minute
	DefaultOrdersInterval     = 15 * time.Minute
	DefaultInventoryInterval  = 2 * time.Hour
	DefaultEngagementInterval = 4 * time.Hour
)

// Outcome classifies a tick
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result is what one tick reports to the registry
type Result struct {
	Monitor  string
	Outcome  Outcome
	Notified int
	Reason   string
	Err      error
}

func ok(name string, notified int) Result {
	return Result{Monitor: name, Outcome: OutcomeOK, Notified: notified}
}

func skipped(name, reason string) Result {
	return Result{Monitor: name, Outcome: OutcomeSkipped, Reason: reason}
}

func failed(name string, err error) Result {
	return Result{Monitor: name, Outcome: OutcomeFailed, Err: err}
}

// Skip reasons
const (
	ReasonNoSession     = "no session token"
	ReasonEmptyCart     = "cart is empty"
	ReasonNoCartSnap    = "no cart snapshot"
	ReasonBelowTier     = "no tier due"
	ReasonEmptyWishlist = "wishlist is empty"
	ReasonNoAppOpen     = "no app open recorded"
)

// Monitor is one independently scheduled polling routine
type Monitor interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context) Result
}

// Backend is the subset of the storefront API the monitors read
type Backend interface {
	GetCart(ctx context.Context, token string) ([]models.CartItem, error)
	GetWishlist(ctx context.Context, token string) ([]models.WishlistItem, error)
	GetMyOrders(ctx context.Context, token string) ([]models.Order, error)
	GetProduct(ctx context.Context, token, productID string) (*models.Product, error)
}

// Dispatcher delivers notifications; it never fails the caller
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) notify.Outcome
	DispatchOrder(ctx context.Context, orderID, status string, n models.Notification) notify.Outcome
}

// Deps are the collaborators shared by every monitor
type Deps struct {
	Session    notify.TokenSource
	Backend    Backend
	Dispatcher Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// token reads the session; a non-nil Result means the tick is over.
func (d Deps) token(ctx context.Context, name string) (string, *Result) {
	tok, found, err := d.Session.Token(ctx)
	if err != nil {
		res := failed(name, fmt.Errorf("failed to read session: %w", err))
		return "", &res
	}
	if !found {
		res := skipped(name, ReasonNoSession)
		return "", &res
	}
	return tok, nil
}

// reseed logs corrupt snapshots; any other load error ends the tick.
func (d Deps) reseed(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, snapshot.ErrCorrupt) {
		d.Logger.Warn("Discarding corrupt snapshot", zap.String("monitor", name), zap.Error(err))
		return nil
	}
	return err
}

func withInterval(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
