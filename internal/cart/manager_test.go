package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbloom/storefront-gateway/internal/guestcart"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	slots := map[string]*memorySlot{}
	factory := func(token string) (guestcart.Slot, error) {
		if slot, ok := slots[token]; ok {
			return slot, nil
		}
		slot := &memorySlot{}
		slots[token] = slot
		return slot, nil
	}
	manager, err := NewManager(&fakeCommerce{}, factory, nil)
	require.NoError(t, err)
	return manager
}

func TestManager_GuestStoreIsStablePerToken(t *testing.T) {
	manager := newTestManager(t)

	first, _, err := manager.Guest("tok-1")
	require.NoError(t, err)
	second, _, err := manager.Guest("tok-1")
	require.NoError(t, err)
	other, _, err := manager.Guest("tok-2")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestManager_GuestCartSurvivesAcrossLookups(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	store, _, err := manager.Guest("tok-1")
	require.NoError(t, err)
	_, err = store.Add(ctx, LineItem{ItemID: 10, Quantity: 2})
	require.NoError(t, err)

	again, _, err := manager.Guest("tok-1")
	require.NoError(t, err)
	snap, err := again.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)
}

func TestManager_MemberStoreIsStablePerMember(t *testing.T) {
	manager := newTestManager(t)

	first, err := manager.Member("5")
	require.NoError(t, err)
	second, err := manager.Member("5")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestManager_RejectsEmptyIdentity(t *testing.T) {
	manager := newTestManager(t)

	_, _, err := manager.Guest("")
	assert.Error(t, err)

	_, err = manager.Member("")
	assert.Error(t, err)
}

func TestManager_EvictsIdleGuestStores(t *testing.T) {
	built := map[string]int{}
	manager, err := NewManager(&fakeCommerce{}, func(token string) (guestcart.Slot, error) {
		built[token]++
		return &memorySlot{}, nil
	}, nil)
	require.NoError(t, err)

	for i := 0; i <= maxGuestStores; i++ {
		if i == maxGuestStores {
			// Touch the first token right before the cache overflows so
			// the second-oldest is the one evicted.
			_, _, err := manager.Guest("tok-0")
			require.NoError(t, err)
		}
		_, _, err := manager.Guest(fmt.Sprintf("tok-%d", i))
		require.NoError(t, err)
	}

	_, _, err = manager.Guest("tok-0")
	require.NoError(t, err)
	assert.Equal(t, 1, built["tok-0"], "recently used store must survive eviction")

	_, _, err = manager.Guest("tok-1")
	require.NoError(t, err)
	assert.Equal(t, 2, built["tok-1"], "least recently used store must be evicted and rebuilt")
}

func TestManager_DropGuestForgetsStore(t *testing.T) {
	manager := newTestManager(t)

	first, _, err := manager.Guest("tok-1")
	require.NoError(t, err)

	manager.DropGuest("tok-1")

	second, _, err := manager.Guest("tok-1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
