package store

import (
	"context"
	"fmt"

	"notification-engine/internal/models"
)

// RecordDispatch appends a dispatch to the notification log
func (s *Store) RecordDispatch(ctx context.Context, rec models.DispatchRecord) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO notification_log (notification_id, type, title, body, local_error, relay_error, dispatched_at)
		VALUES (:notification_id, :type, :title, :body, :local_error, :relay_error, :dispatched_at)`,
		rec)
	if err != nil {
		return fmt.Errorf("failed to record dispatch %s: %w", rec.NotificationID, err)
	}
	return nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
