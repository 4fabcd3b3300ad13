package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbloom/storefront-gateway/internal/cart"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
)

func snapshotOf(ids ...string) cart.Snapshot {
	snap := cart.Snapshot{Mode: cart.ModeMember}
	for _, id := range ids {
		snap.Lines = append(snap.Lines, cart.LineItem{LineID: id, Quantity: 1})
	}
	return snap
}

func TestSelectLines_KeepsCartOrder(t *testing.T) {
	snap := snapshotOf("a", "b", "c")

	lines, err := SelectLines(snap, []string{"c", "a"})

	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].LineID)
	assert.Equal(t, "c", lines[1].LineID)
}

func TestSelectLines_SkipsVanishedIDs(t *testing.T) {
	snap := snapshotOf("a", "b")

	lines, err := SelectLines(snap, []string{"a", "gone"})

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "a", lines[0].LineID)
}

func TestSelectLines_EmptyRequestRejected(t *testing.T) {
	_, err := SelectLines(snapshotOf("a"), nil)

	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptySelection))
}

func TestSelectLines_AllIDsVanishedRejected(t *testing.T) {
	_, err := SelectLines(snapshotOf("a"), []string{"gone"})

	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptySelection))
}
