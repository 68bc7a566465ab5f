// Package snapshot gives each piece of persisted monitor state a typed repository, so the
// diffing logic never touches raw keys or JSON.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notification-engine/internal/kvstore"
)

// Keys of the persistent store
const (
	KeyAuth               = "@auth"
	KeyLastCartUpdate     = "@last_cart_update"
	KeyPriceHistory       = "@price_history"
	KeyOrderStatuses      = "@order_statuses"
	KeyOutOfStockItems    = "@out_of_stock_items"
	KeyLastAppOpen        = "@last_app_open"
	keyCartReminder       = "@cart_reminder_"
	keyEngagementReminder = "@engagement_reminder_"
)

// ErrCorrupt is returned alongside an empty value when persisted JSON cannot be decoded
var ErrCorrupt = errors.New("corrupt snapshot")

// timeLayout mirrors the ISO-8601 form written by the storefront app
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t as a UTC ISO-8601 instant with millisecond precision
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses an ISO-8601 instant
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// getTime reads an instant; missing or unparseable values are reported as absent.
func getTime(ctx context.Context, kv kvstore.Store, key string) (time.Time, bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := ParseTime(raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func setTime(ctx context.Context, kv kvstore.Store, key string, t time.Time) error {
	return kv.Set(ctx, key, FormatTime(t))
}

func getJSON(ctx context.Context, kv kvstore.Store, key string, out any) error {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func setJSON(ctx context.Context, kv kvstore.Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, string(b))
}

// Session reads the authenticated session token
type Session struct {
	kv kvstore.Store
}

// NewSession creates the auth token view
func NewSession(kv kvstore.Store) *Session {
	return &Session{kv: kv}
}

// Token returns the session token; ok is false when the user is signed out.
func (s *Session) Token(ctx context.Context) (string, bool, error) {
	tok, ok, err := s.kv.Get(ctx, KeyAuth)
	if err != nil || !ok || tok == "" {
		return "", false, err
	}
	return tok, true, nil
}

func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.kv.Set(ctx, KeyAuth, token)
}

func (s *Session) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, KeyAuth)
}
