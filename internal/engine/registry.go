// Package engine owns the monitor schedules and the lifecycle subscription.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/lifecycle"
	"notification-engine/internal/monitor"
	"notification-engine/internal/util"
)

// ErrUnknownMonitor is returned by RunOnce for a name that is not registered
var ErrUnknownMonitor = errors.New("unknown monitor")

// MonitorStatus is a point-in-time view of one monitor
type MonitorStatus struct {
	Name         string        `json:"name"`
	Interval     string        `json:"interval"`
	Ticks        int64         `json:"ticks"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastOutcome  string        `json:"last_outcome,omitempty"`
	LastReason   string        `json:"last_reason,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	LastNotified int           `json:"last_notified"`
	LastDuration time.Duration `json:"-"`
}

type entry struct {
	monitor monitor.Monitor

	// run serializes ticks of this monitor, scheduled or manual
	run sync.Mutex

	mu       sync.Mutex
	ticks    int64
	lastRun  time.Time
	last     *monitor.Result
	duration time.Duration
}

// Registry runs each monitor on its own ticker and is the single failure
// boundary for ticks: errors and panics are logged here and never escape.
type Registry struct {
	entries  []*entry
	byName   map[string]*entry
	source   lifecycle.Source
	listener lifecycle.Listener
	logger   *zap.Logger

	mu          sync.Mutex
	running     bool
	stop        chan struct{}
	unsubscribe func()
	loops       sync.WaitGroup
}

// New builds a registry. source and listener may be nil when no lifecycle signal is wired.
func New(monitors []monitor.Monitor, source lifecycle.Source, listener lifecycle.Listener, logger *zap.Logger) *Registry {
	r := &Registry{
		byName:   make(map[string]*entry, len(monitors)),
		source:   source,
		listener: listener,
		logger:   logger,
	}
	for _, m := range monitors {
		e := &entry{monitor: m}
		r.entries = append(r.entries, e)
		r.byName[m.Name()] = e
	}
	return r
}

// Initialize starts every monitor and installs the lifecycle listener.
// Calling it again while running is a no-op. The first tick of each monitor
// happens one interval after start.
func (r *Registry) Initialize(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	r.stop = make(chan struct{})
	for _, e := range r.entries {
		r.loops.Add(1)
		go r.loop(ctx, e, r.stop)
	}
	if r.source != nil && r.listener != nil {
		r.unsubscribe = r.source.Subscribe(r.listener)
	}
	r.running = true

	r.logger.Info("Notification engine initialized", zap.Int("monitors", len(r.entries)))
}

// Cleanup stops all schedules and removes the lifecycle listener. Ticks
// already in flight are left to finish. Safe to call at any time.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stop)
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.running = false

	r.logger.Info("Notification engine stopped")
}

// Running reports whether the schedules are active
func (r *Registry) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until every monitor loop has exited or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.loops.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) loop(ctx context.Context, e *entry, stop <-chan struct{}) {
	defer r.loops.Done()

	ticker := time.NewTicker(e.monitor.Interval())
	defer ticker.Stop()

	// ticks outlive cancellation; their results are simply discarded
	tickCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			r.runTick(tickCtx, e)
		}
	}
}

// RunOnce runs a single tick of the named monitor now, inside the same failure boundary.
func (r *Registry) RunOnce(ctx context.Context, name string) (monitor.Result, error) {
	e, found := r.byName[name]
	if !found {
		return monitor.Result{}, fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}
	return r.runTick(ctx, e), nil
}

func (r *Registry) runTick(ctx context.Context, e *entry) (res monitor.Result) {
	name := e.monitor.Name()

	e.run.Lock()
	defer e.run.Unlock()

	ctx, span := util.StartSpan(ctx, "Monitor."+name, util.AttrMonitor.String(name))
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			util.MonitorPanicsTotal.WithLabelValues(name).Inc()
			r.logger.Error("Monitor tick panicked",
				zap.String("monitor", name),
				zap.Any("panic", p),
				zap.Stack("stack"))
			res = monitor.Result{Monitor: name, Outcome: monitor.OutcomeFailed, Err: fmt.Errorf("panic: %v", p)}
		}
		if res.Monitor == "" {
			res.Monitor = name
		}
		if res.Err != nil {
			span.RecordError(res.Err)
		}

		elapsed := time.Since(start)
		util.MonitorTickLatency.WithLabelValues(name).Observe(elapsed.Seconds())
		util.MonitorTicksTotal.WithLabelValues(name, string(res.Outcome)).Inc()
		e.record(res, start, elapsed)
		r.report(res, elapsed)
	}()

	return e.monitor.Tick(ctx)
}

func (r *Registry) report(res monitor.Result, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("monitor", res.Monitor),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("duration", elapsed),
	}

	switch res.Outcome {
	case monitor.OutcomeFailed:
		r.logger.Warn("Monitor tick failed", append(fields, zap.Error(res.Err))...)
	case monitor.OutcomeSkipped:
		r.logger.Debug("Monitor tick skipped", append(fields, zap.String("reason", res.Reason))...)
	default:
		if res.Notified > 0 {
			r.logger.Info("Monitor tick dispatched notifications", append(fields, zap.Int("notified", res.Notified))...)
			return
		}
		r.logger.Debug("Monitor tick completed", fields...)
	}
}

func (e *entry) record(res monitor.Result, start time.Time, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticks++
	e.lastRun = start
	e.last = &res
	e.duration = elapsed
}

// Names lists the registered monitors in registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.monitor.Name())
	}
	return names
}

// Status reports every monitor in registration order
func (r *Registry) Status() []MonitorStatus {
	out := make([]MonitorStatus, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		st := MonitorStatus{
			Name:         e.monitor.Name(),
			Interval:     e.monitor.Interval().String(),
			Ticks:        e.ticks,
			LastDuration: e.duration,
		}
		if e.last != nil {
			lastRun := e.lastRun
			st.LastRun = &lastRun
			st.LastOutcome = string(e.last.Outcome)
			st.LastReason = e.last.Reason
			st.LastNotified = e.last.Notified
			if e.last.Err != nil {
				st.LastError = e.last.Err.Error()
			}
		}
		e.mu.Unlock()
		out = append(out, st)
	}
	return out
}
