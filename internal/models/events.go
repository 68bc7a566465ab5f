package models

import "time"

// Event types
const (
	EventTypeNotificationDispatched = "NOTIFICATION_DISPATCHED"
	EventTypeAppStateChanged        = "APP_STATE_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationDispatchedEvent published after every dispatch
type NotificationDispatchedEvent struct {
	BaseEvent
	NotificationID string `json:"notification_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	LocalDelivered bool   `json:"local_delivered"`
	RelayDelivered bool   `json:"relay_delivered"`
	LocalError     string `json:"local_error,omitempty"`
	RelayError     string `json:"relay_error,omitempty"`
}

// AppStateChangedEvent published by the host when the app changes lifecycle state
type AppStateChangedEvent struct {
	BaseEvent
	State AppState `json:"state"`
}
