package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notification-engine/internal/models"
)

type fakeSession struct {
	token string
	err   error
}

func (f fakeSession) Token(context.Context) (string, bool, error) {
	return f.token, f.token != "", f.err
}

type fakeLocal struct {
	mu    sync.Mutex
	calls []models.Notification
	err   error
	panic bool
}

func (f *fakeLocal) Notify(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	if f.panic {
		panic("notification center unavailable")
	}
	return f.err
}

type fakeRelay struct {
	sent   []models.RelayNotification
	orders []models.OrderRelayNotification
	tokens []string
	err    error
}

func (f *fakeRelay) SendNotification(_ context.Context, token string, n models.RelayNotification) error {
	f.tokens = append(f.tokens, token)
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeRelay) SendOrderNotification(_ context.Context, token string, n models.OrderRelayNotification) error {
	f.tokens = append(f.tokens, token)
	f.orders = append(f.orders, n)
	return f.err
}

type fakePublisher struct {
	events []*models.NotificationDispatchedEvent
	err    error
}

func (f *fakePublisher) PublishNotificationDispatched(_ context.Context, e *models.NotificationDispatchedEvent) error {
	f.events = append(f.events, e)
	return f.err
}

type fakeRecorder struct {
	records []models.DispatchRecord
}

func (f *fakeRecorder) RecordDispatch(_ context.Context, rec models.DispatchRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func sampleNotification() models.Notification {
	return models.Notification{
		Type:  models.NotificationTypePriceDrop,
		Title: "Price drop",
		Body:  "Lamp is now $90.00",
		Data:  map[string]any{"productId": "p1"},
	}
}

func TestDispatch_BothChannels(t *testing.T) {
	local, relay := &fakeLocal{}, &fakeRelay{}
	d := NewDispatcher(fakeSession{token: "tok"}, local, relay, zap.NewNop())

	out := d.Dispatch(context.Background(), sampleNotification())

	assert.NoError(t, out.LocalErr)
	assert.NoError(t, out.RelayErr)
	assert.NotEmpty(t, out.NotificationID)
	require.Len(t, local.calls, 1)
	require.Len(t, relay.sent, 1)
	assert.Equal(t, "tok", relay.tokens[0])
	assert.Equal(t, models.NotificationTypePriceDrop, relay.sent[0].Type)
	assert.Equal(t, "p1", relay.sent[0].Data["productId"])
}

func TestDispatch_RelayFailureStillShowsLocal(t *testing.T) {
	local, relay := &fakeLocal{}, &fakeRelay{err: errors.New("502")}
	d := NewDispatcher(fakeSession{token: "tok"}, local, relay, zap.NewNop())

	out := d.Dispatch(context.Background(), sampleNotification())

	assert.Len(t, local.calls, 1)
	assert.NoError(t, out.LocalErr)
	assert.Error(t, out.RelayErr)
	assert.True(t, out.Delivered())
}

func TestDispatch_LocalFailureStillRelays(t *testing.T) {
	local, relay := &fakeLocal{err: errors.New("permission denied")}, &fakeRelay{}
	d := NewDispatcher(fakeSession{token: "tok"}, local, relay, zap.NewNop())

	out := d.Dispatch(context.Background(), sampleNotification())

	assert.Error(t, out.LocalErr)
	assert.NoError(t, out.RelayErr)
	assert.Len(t, relay.sent, 1)
}

func TestDispatch_LocalPanicIsContained(t *testing.T) {
	local, relay := &fakeLocal{panic: true}, &fakeRelay{}
	d := NewDispatcher(fakeSession{token: "tok"}, local, relay, zap.NewNop())

	out := d.Dispatch(context.Background(), sampleNotification())

	assert.Error(t, out.LocalErr)
	assert.Len(t, relay.sent, 1)
}

func TestDispatch_NoSessionSkipsRelay(t *testing.T) {
	local, relay := &fakeLocal{}, &fakeRelay{}
	d := NewDispatcher(fakeSession{}, local, relay, zap.NewNop())

	out := d.Dispatch(context.Background(), sampleNotification())

	assert.ErrorIs(t, out.RelayErr, ErrNoSession)
	assert.Empty(t, relay.sent)
	assert.Len(t, local.calls, 1)
}

func TestDispatchOrder_UsesOrderRelay(t *testing.T) {
	local, relay := &fakeLocal{}, &fakeRelay{}
	d := NewDispatcher(fakeSession{token: "tok"}, local, relay, zap.NewNop())

	n := models.Notification{Type: models.NotificationTypeOrderStatus, Title: "Order Shipped", Body: "On its way"}
	d.DispatchOrder(context.Background(), "o1", "shipped", n)

	require.Len(t, relay.orders, 1)
	assert.Empty(t, relay.sent)
	assert.Equal(t, models.OrderRelayNotification{OrderID: "o1", Type: "shipped", Title: "Order Shipped", Body: "On its way"}, relay.orders[0])
}

func TestDispatch_AuditTrail(t *testing.T) {
	relay := &fakeRelay{err: errors.New("down")}
	pub, rec := &fakePublisher{err: errors.New("kafka down")}, &fakeRecorder{}
	d := NewDispatcher(fakeSession{token: "tok"}, &fakeLocal{}, relay, zap.NewNop()).
		WithPublisher(pub).
		WithRecorder(rec)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	out := d.Dispatch(context.Background(), sampleNotification())

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, models.EventTypeNotificationDispatched, ev.EventType)
	assert.Equal(t, out.NotificationID, ev.NotificationID)
	assert.True(t, ev.LocalDelivered)
	assert.False(t, ev.RelayDelivered)
	assert.Equal(t, "down", ev.RelayError)

	require.Len(t, rec.records, 1)
	assert.Equal(t, fixed, rec.records[0].DispatchedAt)
	assert.Equal(t, "down", rec.records[0].RelayError)
}

func TestFCMSender_NilWhenUnconfigured(t *testing.T) {
	s := NewFCMSender("", "", "device", zap.NewNop())
	assert.Nil(t, s)
	assert.NoError(t, s.Notify(context.Background(), sampleNotification()))
}

func TestFCMSender_Notify(t *testing.T) {
	var got fcmRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=server-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":1,"failure":0,"results":[{}]}`))
	}))
	defer srv.Close()

	s := NewFCMSender(srv.URL, "server-key", "device-1", zap.NewNop())
	n := sampleNotification()
	n.ID = "n-1"
	require.NoError(t, s.Notify(context.Background(), n))

	assert.Equal(t, "device-1", got.To)
	assert.Equal(t, "Price drop", got.Notification.Title)
	assert.Equal(t, "p1", got.Data["productId"])
	assert.Equal(t, "n-1", got.Data["notification_id"])
}

func TestFCMSender_DeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"NotRegistered"}]}`))
	}))
	defer srv.Close()

	s := NewFCMSender(srv.URL, "server-key", "device-1", zap.NewNop())
	err := s.Notify(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotRegistered")
}

func TestLogSender_NilSafe(t *testing.T) {
	var s *LogSender
	assert.NoError(t, s.Notify(context.Background(), sampleNotification()))
	assert.NoError(t, NewLogSender(zap.NewNop()).Notify(context.Background(), sampleNotification()))
}
