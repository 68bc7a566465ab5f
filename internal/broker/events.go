package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"notification-engine/internal/models"
	"notification-engine/internal/util"
)

// EventPublisher handles publishing engine events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishNotificationDispatched publishes a dispatch audit event keyed by notification id
func (ep *EventPublisher) PublishNotificationDispatched(ctx context.Context, event *models.NotificationDispatchedEvent) error {
	key := fmt.Sprintf("notification-%s", event.NotificationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onAppStateChanged func(context.Context, *models.AppStateChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnAppStateChanged registers a handler for AppStateChanged events
func (eh *EventHandler) OnAppStateChanged(handler func(context.Context, *models.AppStateChangedEvent) error) {
	eh.onAppStateChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeAppStateChanged:
		if eh.onAppStateChanged != nil {
			var event models.AppStateChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AppStateChanged event: %w", err)
			}
			return eh.onAppStateChanged(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
