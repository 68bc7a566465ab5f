package kvstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "@auth")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "@auth", "token-1"))
	require.NoError(t, m.Set(ctx, "@last_app_open", "2026-01-01T00:00:00.000Z"))

	v, ok, err := m.Get(ctx, "@auth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-1", v)

	require.NoError(t, m.Delete(ctx, "@auth", "@missing"))
	_, ok, _ = m.Get(ctx, "@auth")
	assert.False(t, ok)
	assert.Len(t, m.Snapshot(), 1)
}

func TestMemoryConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			_ = m.Set(ctx, key, key)
			_, _, _ = m.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.Snapshot(), 50)
}

func TestMemoryEventLedger(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	done, err := m.IsEventProcessed(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, m.MarkEventProcessed(ctx, "e1", "APP_STATE_CHANGED"))
	done, err = m.IsEventProcessed(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, m.Snapshot())
}
