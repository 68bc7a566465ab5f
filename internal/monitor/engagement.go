package monitor

import (
	"context"
	"fmt"
	"time"

	"notification-engine/internal/models"
	"notification-engine/internal/snapshot"
)

// EngagementReminderCooldown is how long a fired engagement tier stays quiet
const EngagementReminderCooldown = 48 * time.Hour

var engagementTiers = []snapshot.EngagementTier{snapshot.EngagementTierWeekly, snapshot.EngagementTier48Hour}

var engagementThresholds = map[snapshot.EngagementTier]time.Duration{
	snapshot.EngagementTierWeekly: 7 * 24 * time.Hour,
	snapshot.EngagementTier48Hour: 48 * time.Hour,
}

// Engagement nudges users who have not opened the app in a while.
type Engagement struct {
	deps     Deps
	state    *snapshot.Engagement
	interval time.Duration
}

// NewEngagement creates the re-engagement monitor
func NewEngagement(deps Deps, state *snapshot.Engagement, interval time.Duration) *Engagement {
	return &Engagement{deps: deps, state: state, interval: withInterval(interval, DefaultEngagementInterval)}
}

func (m *Engagement) Name() string            { return NameEngagement }
func (m *Engagement) Interval() time.Duration { return m.interval }

// Tick sends at most one nudge based on time since the last app open
func (m *Engagement) Tick(ctx context.Context) Result {
	lastOpen, found, err := m.state.LastAppOpen(ctx)
	if err != nil {
		return failed(NameEngagement, fmt.Errorf("failed to read last app open: %w", err))
	}
	if !found {
		return skipped(NameEngagement, ReasonNoAppOpen)
	}

	now := m.deps.now()
	away := now.Sub(lastOpen)

	// weekly takes priority; a tier still on cooldown falls through to the next
	for _, tier := range engagementTiers {
		if away < engagementThresholds[tier] {
			continue
		}
		marker, marked, err := m.state.Marker(ctx, tier)
		if err != nil {
			return failed(NameEngagement, fmt.Errorf("failed to read %s reminder: %w", tier, err))
		}
		if !snapshot.Stale(marker, marked, now, EngagementReminderCooldown) {
			continue
		}

		m.deps.Dispatcher.Dispatch(ctx, engagementNotification(tier))
		if err := m.state.SetMarker(ctx, tier, now); err != nil {
			return failed(NameEngagement, fmt.Errorf("failed to mark %s reminder: %w", tier, err))
		}
		return ok(NameEngagement, 1)
	}

	return skipped(NameEngagement, ReasonBelowTier)
}

func engagementNotification(tier snapshot.EngagementTier) models.Notification {
	n := models.Notification{
		Type: models.NotificationTypeReEngagement,
		Data: map[string]any{
			"type": models.NotificationTypeReEngagement,
			"tier": string(tier),
		},
	}
	if tier == snapshot.EngagementTierWeekly {
		n.Title = "We miss you!"
		n.Body = "It's been a while. Come back and see what's new in the store."
	} else {
		n.Title = "New arrivals are waiting"
		n.Body = "Fresh products just landed. Take a look!"
	}
	return n
}
