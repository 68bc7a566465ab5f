package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notification-engine/internal/lifecycle"
	"notification-engine/internal/models"
	"notification-engine/internal/monitor"
)

type fakeMonitor struct {
	name     string
	interval time.Duration
	ticks    int32
	result   monitor.Result
	panics   bool
	block    chan struct{}
}

func (f *fakeMonitor) Name() string            { return f.name }
func (f *fakeMonitor) Interval() time.Duration { return f.interval }

func (f *fakeMonitor) Tick(ctx context.Context) monitor.Result {
	atomic.AddInt32(&f.ticks, 1)
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	return f.result
}

func (f *fakeMonitor) count() int32 { return atomic.LoadInt32(&f.ticks) }

func okMonitor(name string, interval time.Duration) *fakeMonitor {
	return &fakeMonitor{
		name:     name,
		interval: interval,
		result:   monitor.Result{Monitor: name, Outcome: monitor.OutcomeOK},
	}
}

func TestInitializeStartsAllMonitors(t *testing.T) {
	a, b := okMonitor("a", 5*time.Millisecond), okMonitor("b", 7*time.Millisecond)
	r := New([]monitor.Monitor{a, b}, nil, nil, zap.NewNop())

	r.Initialize(context.Background())
	defer r.Cleanup()

	assert.Eventually(t, func() bool { return a.count() >= 2 && b.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, r.Running())
}

func TestInitializeIsIdempotent(t *testing.T) {
	bus := lifecycle.NewBus()
	a := okMonitor("a", time.Hour)
	r := New([]monitor.Monitor{a}, bus, func(context.Context, models.AppState) {}, zap.NewNop())

	r.Initialize(context.Background())
	r.Initialize(context.Background())

	assert.Equal(t, 1, bus.Listeners())
	r.Cleanup()
	require.NoError(t, r.Wait(context.Background()))
}

func TestCleanupBeforeInitialize(t *testing.T) {
	r := New([]monitor.Monitor{okMonitor("a", time.Hour)}, lifecycle.NewBus(), nil, zap.NewNop())

	assert.NotPanics(t, func() {
		r.Cleanup()
		r.Cleanup()
	})
	assert.False(t, r.Running())
}

func TestCleanupStopsTicksAndListener(t *testing.T) {
	bus := lifecycle.NewBus()
	var transitions int32
	listener := func(context.Context, models.AppState) { atomic.AddInt32(&transitions, 1) }
	a := okMonitor("a", 5*time.Millisecond)
	r := New([]monitor.Monitor{a}, bus, listener, zap.NewNop())

	r.Initialize(context.Background())
	bus.Publish(context.Background(), models.AppStateActive)
	require.Eventually(t, func() bool { return a.count() >= 1 }, time.Second, 5*time.Millisecond)

	r.Cleanup()
	require.NoError(t, r.Wait(context.Background()))
	stopped := a.count()

	bus.Publish(context.Background(), models.AppStateActive)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, stopped, a.count())
	assert.Equal(t, int32(1), atomic.LoadInt32(&transitions))
	assert.Equal(t, 0, bus.Listeners())
}

func TestPanicDoesNotStopOtherMonitors(t *testing.T) {
	bad := &fakeMonitor{name: "bad", interval: 5 * time.Millisecond, panics: true}
	good := okMonitor("good", 5*time.Millisecond)
	r := New([]monitor.Monitor{bad, good}, nil, nil, zap.NewNop())

	r.Initialize(context.Background())
	defer r.Cleanup()

	assert.Eventually(t, func() bool { return bad.count() >= 3 && good.count() >= 3 }, time.Second, 5*time.Millisecond)

	var badStatus MonitorStatus
	for _, st := range r.Status() {
		if st.Name == "bad" {
			badStatus = st
		}
	}
	assert.Equal(t, string(monitor.OutcomeFailed), badStatus.LastOutcome)
	assert.Contains(t, badStatus.LastError, "boom")
}

func TestRunOnce(t *testing.T) {
	a := okMonitor("a", time.Hour)
	a.result = monitor.Result{Outcome: monitor.OutcomeFailed, Err: errors.New("backend down")}
	r := New([]monitor.Monitor{a}, nil, nil, zap.NewNop())

	res, err := r.RunOnce(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Monitor)
	assert.Equal(t, monitor.OutcomeFailed, res.Outcome)

	_, err = r.RunOnce(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownMonitor)

	st := r.Status()
	require.Len(t, st, 1)
	assert.Equal(t, int64(1), st[0].Ticks)
	assert.Equal(t, "backend down", st[0].LastError)
	assert.NotNil(t, st[0].LastRun)
	assert.Equal(t, "1h0m0s", st[0].Interval)
}

func TestRunOnceRecoversPanic(t *testing.T) {
	r := New([]monitor.Monitor{&fakeMonitor{name: "bad", interval: time.Hour, panics: true}}, nil, nil, zap.NewNop())

	var res monitor.Result
	assert.NotPanics(t, func() { res, _ = r.RunOnce(context.Background(), "bad") })
	assert.Equal(t, monitor.OutcomeFailed, res.Outcome)
}

func TestInFlightTickFinishesAfterCleanup(t *testing.T) {
	block := make(chan struct{})
	a := okMonitor("a", 5*time.Millisecond)
	a.block = block
	r := New([]monitor.Monitor{a}, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	r.Initialize(ctx)
	require.Eventually(t, func() bool { return a.count() == 1 }, time.Second, time.Millisecond)

	r.Cleanup()
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	assert.ErrorIs(t, r.Wait(waitCtx), context.DeadlineExceeded)

	close(block)
	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, int64(1), r.Status()[0].Ticks)
}

func TestNames(t *testing.T) {
	r := New([]monitor.Monitor{okMonitor("cart", time.Hour), okMonitor("price", time.Hour)}, nil, nil, zap.NewNop())
	assert.Equal(t, []string{"cart", "price"}, r.Names())
}
