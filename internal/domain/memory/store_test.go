package memory_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/memory"
)

func TestStore_UpdateCreatesAndMutates(t *testing.T) {
	store, err := memory.NewStore(8)
	require.NoError(t, err)

	store.Update("conv-1", func(st *memory.State) {
		st.IntentType = "create_appointment"
		st.Slots["patient"] = "Ana Silva"
	})
	store.Update("conv-1", func(st *memory.State) {
		st.Slots["date"] = "2026-09-01"
	})

	state, ok := store.Get("conv-1")
	require.True(t, ok)
	assert.Equal(t, "create_appointment", state.IntentType)
	assert.Equal(t, map[string]string{"patient": "Ana Silva", "date": "2026-09-01"}, state.Slots)
	assert.False(t, state.LastActivity.IsZero())
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store, err := memory.NewStore(8)
	require.NoError(t, err)

	store.Update("conv-1", func(st *memory.State) {
		st.Slots["patient"] = "Ana Silva"
	})

	state, ok := store.Get("conv-1")
	require.True(t, ok)
	state.Slots["patient"] = "tampered"

	fresh, ok := store.Get("conv-1")
	require.True(t, ok)
	assert.Equal(t, "Ana Silva", fresh.Slots["patient"])
}

func TestStore_Clear(t *testing.T) {
	store, err := memory.NewStore(8)
	require.NoError(t, err)

	store.Update("conv-1", func(st *memory.State) { st.IntentType = "cancel" })
	store.Clear("conv-1")

	_, ok := store.Get("conv-1")
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestStore_CapacityEvictsOldest(t *testing.T) {
	store, err := memory.NewStore(2)
	require.NoError(t, err)

	store.Update("conv-1", func(st *memory.State) {})
	store.Update("conv-2", func(st *memory.State) {})
	store.Update("conv-3", func(st *memory.State) {})

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("conv-1")
	assert.False(t, ok, "least recently used conversation is evicted")
	_, ok = store.Get("conv-3")
	assert.True(t, ok)
}

func TestStore_SweepClearsIdleConversations(t *testing.T) {
	store, err := memory.NewStore(8)
	require.NoError(t, err)

	store.Update("stale", func(st *memory.State) {})
	time.Sleep(20 * time.Millisecond)
	store.Update("fresh", func(st *memory.State) {})

	cleared := store.Sweep(10 * time.Millisecond)
	assert.Equal(t, 1, cleared)

	_, ok := store.Get("stale")
	assert.False(t, ok)
	_, ok = store.Get("fresh")
	assert.True(t, ok)
}

func TestStore_ConcurrentUpdatesNeverLoseSlots(t *testing.T) {
	store, err := memory.NewStore(8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Update("conv-1", func(st *memory.State) {
				st.Slots[fmt.Sprintf("slot-%d", n)] = "v"
			})
		}(i)
	}
	wg.Wait()

	state, ok := store.Get("conv-1")
	require.True(t, ok)
	assert.Len(t, state.Slots, 20)
}
