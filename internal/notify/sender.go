package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/models"
)

// DefaultFCMURL is the legacy FCM HTTP send endpoint
const DefaultFCMURL = "https://fcm.googleapis.com/fcm/send"

// LocalNotifier shows a notification on the device, independent of the backend relay.
type LocalNotifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error *string `json:"error"`
	} `json:"results"`
}

// FCMSender pushes notifications to this install's device token.
// Nil-safe: when not configured, Notify is a no-op.
type FCMSender struct {
	url         string
	serverKey   string
	deviceToken string
	client      *http.Client
	logger      *zap.Logger
}

// NewFCMSender returns nil if the server key or the device token is empty.
func NewFCMSender(url, serverKey, deviceToken string, logger *zap.Logger) *FCMSender {
	if serverKey == "" || deviceToken == "" {
		return nil
	}
	if url == "" {
		url = DefaultFCMURL
	}
	return &FCMSender{
		url:         url,
		serverKey:   serverKey,
		deviceToken: deviceToken,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

func (s *FCMSender) Notify(ctx context.Context, n models.Notification) error {
	if s == nil {
		return nil
	}

	body, err := json.Marshal(fcmRequest{
		To:           s.deviceToken,
		Notification: fcmNotification{Title: n.Title, Body: n.Body, Sound: "default"},
		Data:         stringData(n),
	})
	if err != nil {
		return fmt.Errorf("fcm: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fcm: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 300000))
	if err != nil {
		return fmt.Errorf("fcm: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fcm: unexpected status %d: %s", resp.StatusCode, raw)
	}

	var out fcmResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("fcm: failed to decode response: %w", err)
	}
	if out.Failure > 0 {
		reason := "unknown"
		if len(out.Results) > 0 && out.Results[0].Error != nil {
			reason = *out.Results[0].Error
		}
		return fmt.Errorf("fcm: delivery failed: %s", reason)
	}

	s.logger.Debug("FCM notification sent", zap.String("notification_id", n.ID), zap.String("type", n.Type))
	return nil
}

// stringData flattens the payload, FCM data values must be strings.
func stringData(n models.Notification) map[string]string {
	out := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		out[k] = fmt.Sprint(v)
	}
	out["type"] = n.Type
	out["notification_id"] = n.ID
	return out
}

// LogSender writes notifications to the log. Used when no push channel is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a local notifier that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Notify(_ context.Context, n models.Notification) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("Local notification",
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type),
		zap.String("title", n.Title),
		zap.String("body", n.Body))
	return nil
}
