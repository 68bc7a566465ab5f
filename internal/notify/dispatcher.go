// Package notify delivers notifications through the local channel and the backend relay.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notification-engine/internal/models"
	"notification-engine/internal/util"
)

// ErrNoSession is the relay error when no session token is available
var ErrNoSession = errors.New("no session token")

// TokenSource supplies the session token attached to relayed notifications
type TokenSource interface {
	Token(ctx context.Context) (string, bool, error)
}

// Relay is the backend notification relay
type Relay interface {
	SendNotification(ctx context.Context, token string, n models.RelayNotification) error
	SendOrderNotification(ctx context.Context, token string, n models.OrderRelayNotification) error
}

// Publisher receives an audit event for every dispatch
type Publisher interface {
	PublishNotificationDispatched(ctx context.Context, event *models.NotificationDispatchedEvent) error
}

// Recorder persists an audit row for every dispatch
type Recorder interface {
	RecordDispatch(ctx context.Context, rec models.DispatchRecord) error
}

// Outcome reports what happened on each channel
type Outcome struct {
	NotificationID string
	LocalErr       error
	RelayErr       error
}

// Delivered reports whether at least one channel succeeded
func (o Outcome) Delivered() bool {
	return o.LocalErr == nil || o.RelayErr == nil
}

// Dispatcher sends every notification on both channels. A failure on one
// channel never prevents the other.
type Dispatcher struct {
	session   TokenSource
	local     LocalNotifier
	relay     Relay
	publisher Publisher
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher over a local notifier and the backend relay
func NewDispatcher(session TokenSource, local LocalNotifier, relay Relay, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		session: session,
		local:   local,
		relay:   relay,
		logger:  logger,
		now:     time.Now,
	}
}

// WithPublisher enables dispatch audit events
func (d *Dispatcher) WithPublisher(p Publisher) *Dispatcher {
	d.publisher = p
	return d
}

// WithRecorder enables the dispatch log
func (d *Dispatcher) WithRecorder(r Recorder) *Dispatcher {
	d.recorder = r
	return d
}

// Dispatch shows n locally and relays it through POST /notifications/send
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) Outcome {
	return d.dispatch(ctx, n, func(ctx context.Context, token string) error {
		return d.relay.SendNotification(ctx, token, models.RelayNotification{
			Title: n.Title,
			Body:  n.Body,
			Type:  n.Type,
			Data:  n.Data,
		})
	})
}

// DispatchOrder shows n locally and relays it through POST /notifications/send-order
func (d *Dispatcher) DispatchOrder(ctx context.Context, orderID, status string, n models.Notification) Outcome {
	return d.dispatch(ctx, n, func(ctx context.Context, token string) error {
		return d.relay.SendOrderNotification(ctx, token, models.OrderRelayNotification{
			OrderID: orderID,
			Type:    status,
			Title:   n.Title,
			Body:    n.Body,
		})
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, n models.Notification, send func(context.Context, string) error) Outcome {
	ctx, span := util.StartSpan(ctx, "Dispatcher.Dispatch", util.AttrNotifyType.String(string(n.Type)))
	defer span.End()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	out := Outcome{NotificationID: n.ID}

	out.LocalErr = d.deliverLocal(ctx, n)
	out.RelayErr = d.deliverRelay(ctx, send)

	d.countChannel(n.Type, "local", out.LocalErr)
	d.countChannel(n.Type, "relay", out.RelayErr)

	if out.LocalErr != nil {
		d.logger.Error("Local notification failed",
			zap.String("notification_id", n.ID), zap.String("type", n.Type), zap.Error(out.LocalErr))
	}
	if out.RelayErr != nil {
		d.logger.Error("Relay notification failed",
			zap.String("notification_id", n.ID), zap.String("type", n.Type), zap.Error(out.RelayErr))
	}

	d.audit(ctx, n, out)
	return out
}

func (d *Dispatcher) deliverLocal(ctx context.Context, n models.Notification) (err error) {
	if d.local == nil {
		return errors.New("no local notifier configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("local notifier panic: %v", r)
		}
	}()
	return d.local.Notify(ctx, n)
}

func (d *Dispatcher) deliverRelay(ctx context.Context, send func(context.Context, string) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay panic: %v", r)
		}
	}()
	token, ok, err := d.session.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return ErrNoSession
	}
	return send(ctx, token)
}

func (d *Dispatcher) countChannel(notificationType, channel string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	util.NotificationsDispatchedTotal.WithLabelValues(notificationType, channel, result).Inc()
}

// audit is best effort, its failures are only logged.
func (d *Dispatcher) audit(ctx context.Context, n models.Notification, out Outcome) {
	now := d.now().UTC()
	localErr, relayErr := errString(out.LocalErr), errString(out.RelayErr)

	if d.recorder != nil {
		err := d.recorder.RecordDispatch(ctx, models.DispatchRecord{
			NotificationID: n.ID,
			Type:           n.Type,
			Title:          n.Title,
			Body:           n.Body,
			LocalError:     localErr,
			RelayError:     relayErr,
			DispatchedAt:   now,
		})
		if err != nil {
			d.logger.Warn("Failed to record dispatch", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}

	if d.publisher != nil {
		event := &models.NotificationDispatchedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeNotificationDispatched,
				Timestamp: now,
			},
			NotificationID: n.ID,
			Type:           n.Type,
			Title:          n.Title,
			LocalDelivered: out.LocalErr == nil,
			RelayDelivered: out.RelayErr == nil,
			LocalError:     localErr,
			RelayError:     relayErr,
		}
		if err := d.publisher.PublishNotificationDispatched(ctx, event); err != nil {
			d.logger.Warn("Failed to publish dispatch event", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
