package checkout

import (
	"github.com/marketbloom/storefront-gateway/internal/cart"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
)

// SelectLines resolves the buyer's chosen line ids against the cart snapshot.
// Ids that no longer exist are skipped; an empty result means there is
// nothing to buy and checkout must not proceed.
func SelectLines(snap cart.Snapshot, lineIDs []string) ([]cart.LineItem, error) {
	if len(lineIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptySelection, "no cart lines selected")
	}
	wanted := make(map[string]struct{}, len(lineIDs))
	for _, id := range lineIDs {
		wanted[id] = struct{}{}
	}
	selected := make([]cart.LineItem, 0, len(lineIDs))
	for _, line := range snap.Lines {
		if _, ok := wanted[line.LineID]; ok {
			selected = append(selected, line)
		}
	}
	if len(selected) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptySelection, "selected cart lines no longer exist")
	}
	return selected, nil
}
