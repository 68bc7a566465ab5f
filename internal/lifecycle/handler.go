package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"notification-engine/internal/models"
	"notification-engine/internal/snapshot"
	"notification-engine/internal/util"
)

// Handler resets snapshot state on foreground and background transitions.
type Handler struct {
	cart       *snapshot.CartState
	engagement *snapshot.Engagement
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a handler writing to the cart and engagement snapshots
func NewHandler(cart *snapshot.CartState, engagement *snapshot.Engagement, logger *zap.Logger) *Handler {
	return &Handler{
		cart:       cart,
		engagement: engagement,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Apply handles one transition.
// active: record the app open and reset cart escalation.
// background: start the cart idle clock.
// inactive is ignored.
func (h *Handler) Apply(ctx context.Context, state models.AppState) error {
	util.LifecycleTransitionsTotal.WithLabelValues(string(state)).Inc()
	now := h.now()

	switch state {
	case models.AppStateActive:
		if err := h.engagement.SetLastAppOpen(ctx, now); err != nil {
			return fmt.Errorf("failed to record app open: %w", err)
		}
		if err := h.cart.ClearMarkers(ctx); err != nil {
			return fmt.Errorf("failed to clear cart reminders: %w", err)
		}
	case models.AppStateBackground:
		if err := h.cart.SetLastUpdate(ctx, now); err != nil {
			return fmt.Errorf("failed to record cart snapshot: %w", err)
		}
	}
	return nil
}

// Handle is the Listener form of Apply; failures are logged.
func (h *Handler) Handle(ctx context.Context, state models.AppState) {
	if err := h.Apply(ctx, state); err != nil {
		h.logger.Warn("Lifecycle transition not applied", zap.String("state", string(state)), zap.Error(err))
		return
	}
	h.logger.Debug("Lifecycle transition applied", zap.String("state", string(state)))
}
