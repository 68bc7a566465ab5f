package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/kvstore"
	"notification-engine/internal/models"
	"notification-engine/internal/notify"
	"notification-engine/internal/snapshot"
)

var errBackendDown = errors.New("backend down")

type fakeBackend struct {
	mu         sync.Mutex
	cart       []models.CartItem
	wishlist   []models.WishlistItem
	orders     []models.Order
	products   map[string]*models.Product
	err        error
	productErr map[string]error
	calls      []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) GetCart(context.Context, string) ([]models.CartItem, error) {
	f.record("cart")
	return f.cart, f.err
}

func (f *fakeBackend) GetWishlist(context.Context, string) ([]models.WishlistItem, error) {
	f.record("wishlist")
	return f.wishlist, f.err
}

func (f *fakeBackend) GetMyOrders(context.Context, string) ([]models.Order, error) {
	f.record("orders")
	return f.orders, f.err
}

func (f *fakeBackend) GetProduct(_ context.Context, _ string, id string) (*models.Product, error) {
	f.record("product:"+id)
	if err := f.productErr[id]; err != nil {
		return nil, err
	}
	p, found := f.products[id]
	if !found {
		return nil, errors.New("not found")
	}
	return p, nil
}

type orderDispatch struct {
	orderID string
	status  string
	n       models.Notification
}

type fakeDispatcher struct {
	mu     sync.Mutex
	sent   []models.Notification
	orders []orderDispatch
}

func (f *fakeDispatcher) Dispatch(_ context.Context, n models.Notification) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return notify.Outcome{}
}

func (f *fakeDispatcher) DispatchOrder(_ context.Context, orderID, status string, n models.Notification) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orderDispatch{orderID: orderID, status: status, n: n})
	return notify.Outcome{}
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	kv         *kvstore.Memory
	session    *snapshot.Session
	backend    *fakeBackend
	dispatcher *fakeDispatcher
	clock      *clock
}

func newHarness() *harness {
	kv := kvstore.NewMemory()
	h := &harness{
		kv:         kv,
		session:    snapshot.NewSession(kv),
		backend:    &fakeBackend{},
		dispatcher: &fakeDispatcher{},
		clock:      &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	_ = h.session.SetToken(context.Background(), "tok")
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Session:    h.session,
		Backend:    h.backend,
		Dispatcher: h.dispatcher,
		Logger:     zap.NewNop(),
		Now:        h.clock.now,
	}
}

func ptr(f float64) *float64 { return &f }
