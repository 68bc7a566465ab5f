package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"notification-engine/internal/broker"
	"notification-engine/internal/models"
)

// EventLedger remembers consumed event ids
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// StatePublisher receives lifecycle transitions, normally a lifecycle.Bus
type StatePublisher interface {
	Publish(ctx context.Context, state models.AppState)
}

// LifecycleWorker feeds APP_STATE_CHANGED events from Kafka into the lifecycle signal
type LifecycleWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ledger       EventLedger
	publisher    StatePublisher
	logger       *zap.Logger
}

// NewLifecycleWorker creates a new lifecycle worker. ledger may be nil to disable dedupe.
func NewLifecycleWorker(
	consumer *broker.Consumer,
	ledger EventLedger,
	publisher StatePublisher,
	logger *zap.Logger,
) *LifecycleWorker {
	w := &LifecycleWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ledger:       ledger,
		publisher:    publisher,
		logger:       logger,
	}
	w.eventHandler.OnAppStateChanged(w.HandleAppStateChanged)
	return w
}

// Start blocks consuming until ctx is cancelled
func (w *LifecycleWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting lifecycle worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LifecycleWorker) Stop() error {
	w.logger.Info("Stopping lifecycle worker")
	return w.consumer.Close()
}

// HandleAppStateChanged publishes one transition, dropping redeliveries and unknown states
func (w *LifecycleWorker) HandleAppStateChanged(ctx context.Context, event *models.AppStateChangedEvent) error {
	if !event.State.Valid() {
		w.logger.Warn("Ignoring unknown app state",
			zap.String("event_id", event.EventID),
			zap.String("state", string(event.State)))
		return nil
	}

	if w.ledger != nil && event.EventID != "" {
		processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("failed to check event %s: %w", event.EventID, err)
		}
		if processed {
			w.logger.Debug("Skipping duplicate lifecycle event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	w.publisher.Publish(ctx, event.State)

	if w.ledger != nil && event.EventID != "" {
		if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
			w.logger.Warn("Failed to mark lifecycle event processed",
				zap.String("event_id", event.EventID), zap.Error(err))
		}
	}
	return nil
}
