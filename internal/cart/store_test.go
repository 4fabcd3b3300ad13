package cart

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
)

// fakeCommerce is an in-memory stand-in for the commerce cart endpoints. It
// merges added lines by (itemId, optionLabel) the way the backend does.
type fakeCommerce struct {
	lines    []LineItem
	nextID   int64
	fetchErr error
	mergeErr error
	merges   int
}

func (f *fakeCommerce) FetchCart(ctx context.Context) ([]LineItem, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]LineItem, len(f.lines))
	copy(out, f.lines)
	return out, nil
}

func (f *fakeCommerce) AddCartLine(ctx context.Context, input AddInput) (string, error) {
	for i := range f.lines {
		if f.lines[i].ItemID == input.ItemID && f.lines[i].OptionLabel == input.OptionLabel {
			f.lines[i].Quantity += input.Quantity
			return f.lines[i].LineID, nil
		}
	}
	f.nextID++
	id := "srv-" + strconv.FormatInt(f.nextID, 10)
	f.lines = append(f.lines, LineItem{
		LineID:           id,
		ItemID:           input.ItemID,
		OptionLabel:      input.OptionLabel,
		OptionExtraPrice: input.OptionExtraPrice,
		Quantity:         input.Quantity,
	})
	return id, nil
}

func (f *fakeCommerce) UpdateCartLine(ctx context.Context, lineID string, quantity int) error {
	for i := range f.lines {
		if f.lines[i].LineID == lineID {
			f.lines[i].Quantity = quantity
		}
	}
	return nil
}

func (f *fakeCommerce) DeleteCartLines(ctx context.Context, lineIDs []string) error {
	drop := make(map[string]struct{}, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = struct{}{}
	}
	kept := f.lines[:0]
	for _, line := range f.lines {
		if _, ok := drop[line.LineID]; !ok {
			kept = append(kept, line)
		}
	}
	f.lines = kept
	return nil
}

func (f *fakeCommerce) MergeCartLines(ctx context.Context, inputs []AddInput) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merges++
	for _, input := range inputs {
		if _, err := f.AddCartLine(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

func newMemberStore(t *testing.T, api CommerceAPI) *Store {
	t.Helper()
	store, err := NewStore(NewRemoteBackend(api), nil)
	require.NoError(t, err)
	return store
}

func TestStore_LoadServesStaleSnapshotOnBackendFailure(t *testing.T) {
	api := &fakeCommerce{lines: []LineItem{{LineID: "srv-1", ItemID: 10, Quantity: 2}}}
	store := newMemberStore(t, api)
	ctx := context.Background()

	warm, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, warm.Lines, 1)

	api.fetchErr = errors.New("backend down")

	stale, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, warm.Lines, stale.Lines)
}

func TestStore_LoadColdStartFailureIsFatal(t *testing.T) {
	api := &fakeCommerce{fetchErr: errors.New("backend down")}
	store := newMemberStore(t, api)

	_, err := store.Load(context.Background())

	assert.Error(t, err)
}

func TestStore_SetQuantityReturnsFreshSnapshot(t *testing.T) {
	api := &fakeCommerce{lines: []LineItem{{LineID: "srv-1", ItemID: 10, Quantity: 1}}}
	store := newMemberStore(t, api)

	snap, err := store.SetQuantity(context.Background(), "srv-1", 4)

	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 4, snap.Lines[0].Quantity)
}

func TestStore_DropsLocksForRemovedLines(t *testing.T) {
	api := &fakeCommerce{lines: []LineItem{
		{LineID: "srv-1", ItemID: 10, Quantity: 1},
		{LineID: "srv-2", ItemID: 20, Quantity: 1},
	}}
	store := newMemberStore(t, api)
	ctx := context.Background()

	_, err := store.SetQuantity(ctx, "srv-1", 2)
	require.NoError(t, err)
	_, err = store.SetQuantity(ctx, "srv-2", 3)
	require.NoError(t, err)

	_, err = store.Remove(ctx, "srv-1")
	require.NoError(t, err)

	_, gone := store.locks.Load("srv-1")
	assert.False(t, gone, "removed line must not keep its lock")
	_, kept := store.locks.Load("srv-2")
	assert.True(t, kept, "live line keeps its lock")
}

func TestStore_RemoveManyIsAllOrNothing(t *testing.T) {
	api := &fakeCommerce{lines: []LineItem{
		{LineID: "srv-1", ItemID: 10, Quantity: 1},
		{LineID: "srv-2", ItemID: 20, Quantity: 1},
		{LineID: "srv-3", ItemID: 30, Quantity: 1},
	}}
	store := newMemberStore(t, api)

	snap, err := store.RemoveMany(context.Background(), []string{"srv-1", "srv-3"})

	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "srv-2", snap.Lines[0].LineID)
}

func TestStore_MergeGuestCart(t *testing.T) {
	ctx := context.Background()

	slot := &memorySlot{}
	local := newLocal(t, slot)
	_, err := local.Add(ctx, LineItem{ItemID: 10, OptionLabel: "red", Quantity: 2})
	require.NoError(t, err)
	_, err = local.Add(ctx, LineItem{ItemID: 20, Quantity: 1})
	require.NoError(t, err)

	// Member cart already holds item 10/red with quantity 1; the merged
	// result must collapse to a single line with quantity 3.
	api := &fakeCommerce{nextID: 1, lines: []LineItem{{LineID: "srv-1", ItemID: 10, OptionLabel: "red", Quantity: 1}}}
	store := newMemberStore(t, api)

	snap, err := store.MergeGuestCart(ctx, local)

	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)
	mergedLine := snap.Find("srv-1")
	require.NotNil(t, mergedLine)
	assert.Equal(t, 3, mergedLine.Quantity)
	assert.Equal(t, 1, slot.cleared, "guest slot should be cleared after a successful merge")
}

func TestStore_MergeFailureKeepsGuestSlot(t *testing.T) {
	ctx := context.Background()

	slot := &memorySlot{}
	local := newLocal(t, slot)
	_, err := local.Add(ctx, LineItem{ItemID: 10, Quantity: 1})
	require.NoError(t, err)

	api := &fakeCommerce{mergeErr: errors.New("backend down")}
	store := newMemberStore(t, api)

	_, err = store.MergeGuestCart(ctx, local)

	require.Error(t, err)
	assert.Zero(t, slot.cleared)

	guest, err := local.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, guest.Lines, 1)
}

func TestStore_MergeEmptyGuestCartIsNoOp(t *testing.T) {
	api := &fakeCommerce{}
	store := newMemberStore(t, api)
	local := newLocal(t, &memorySlot{})

	_, err := store.MergeGuestCart(context.Background(), local)

	require.NoError(t, err)
	assert.Zero(t, api.merges)
}

func TestStore_MergeIntoGuestStoreRejected(t *testing.T) {
	local := newLocal(t, &memorySlot{})
	store, err := NewStore(local, nil)
	require.NoError(t, err)

	_, err = store.MergeGuestCart(context.Background(), newLocal(t, &memorySlot{}))

	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}
