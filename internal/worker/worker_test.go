package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notification-engine/internal/kvstore"
	"notification-engine/internal/models"
)

type recordingPublisher struct {
	states []models.AppState
}

func (r *recordingPublisher) Publish(_ context.Context, s models.AppState) {
	r.states = append(r.states, s)
}

type brokenLedger struct{}

func (brokenLedger) IsEventProcessed(context.Context, string) (bool, error) {
	return false, errors.New("redis unavailable")
}

func (brokenLedger) MarkEventProcessed(context.Context, string, string) error { return nil }

func event(id string, state models.AppState) *models.AppStateChangedEvent {
	return &models.AppStateChangedEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeAppStateChanged},
		State:     state,
	}
}

func TestHandleAppStateChanged_DropsDuplicates(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewLifecycleWorker(nil, kvstore.NewMemory(), pub, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.HandleAppStateChanged(ctx, event("e1", models.AppStateBackground)))
	require.NoError(t, w.HandleAppStateChanged(ctx, event("e1", models.AppStateBackground)))
	require.NoError(t, w.HandleAppStateChanged(ctx, event("e2", models.AppStateActive)))

	assert.Equal(t, []models.AppState{models.AppStateBackground, models.AppStateActive}, pub.states)
}

func TestHandleAppStateChanged_UnknownState(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewLifecycleWorker(nil, nil, pub, zap.NewNop())

	require.NoError(t, w.HandleAppStateChanged(context.Background(), event("e1", "suspended")))
	assert.Empty(t, pub.states)
}

func TestHandleAppStateChanged_LedgerErrorIsRetried(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewLifecycleWorker(nil, brokenLedger{}, pub, zap.NewNop())

	err := w.HandleAppStateChanged(context.Background(), event("e1", models.AppStateActive))
	assert.Error(t, err)
	assert.Empty(t, pub.states)
}

func TestHandleAppStateChanged_NoLedger(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewLifecycleWorker(nil, nil, pub, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.HandleAppStateChanged(ctx, event("e1", models.AppStateInactive)))
	require.NoError(t, w.HandleAppStateChanged(ctx, event("e1", models.AppStateInactive)))
	assert.Len(t, pub.states, 2)
}
