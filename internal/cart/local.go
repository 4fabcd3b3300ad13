package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/marketbloom/storefront-gateway/internal/guestcart"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

const localIDPrefix = "g-"

// LocalBackend serves the anonymous cart out of a guest slot. It never fails
// a read: a missing or corrupt slot is an empty cart. Writes that fail are
// surfaced, but callers keep the in-memory snapshot as authoritative for the
// rest of the session.
type LocalBackend struct {
	slot guestcart.Slot
	logg *logger.Logger
}

func NewLocalBackend(slot guestcart.Slot, logg *logger.Logger) (*LocalBackend, error) {
	if slot == nil {
		return nil, fmt.Errorf("guest slot required")
	}
	return &LocalBackend{slot: slot, logg: logg}, nil
}

func (b *LocalBackend) Mode() Mode { return ModeGuest }

func (b *LocalBackend) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Mode: ModeGuest}
	payload, err := b.slot.Read(ctx)
	if err != nil {
		return snap, err
	}
	if len(payload) == 0 {
		return snap, nil
	}
	var lines []LineItem
	if err := json.Unmarshal(payload, &lines); err != nil {
		// Corrupt slot reads as empty; losing a broken guest cart beats
		// blocking the whole storefront on it.
		if b.logg != nil {
			b.logg.Warn(b.logg.WithField(ctx, "reason", err.Error()), "guest cart slot unreadable, starting empty")
		}
		return snap, nil
	}
	snap.Lines = lines
	return snap, nil
}

// Add merges the candidate into an existing line with the same
// (itemId, optionLabel) identity, or appends it under a fresh local id.
func (b *LocalBackend) Add(ctx context.Context, candidate LineItem) (string, error) {
	if candidate.Quantity < 1 {
		return "", fmt.Errorf("quantity must be at least 1")
	}
	snap, err := b.Load(ctx)
	if err != nil {
		return "", err
	}

	var lineID string
	merged := false
	for i := range snap.Lines {
		if snap.Lines[i].ItemID == candidate.ItemID && snap.Lines[i].OptionLabel == candidate.OptionLabel {
			snap.Lines[i].Quantity += candidate.Quantity
			lineID = snap.Lines[i].LineID
			merged = true
			break
		}
	}
	if !merged {
		lineID = nextLocalID(snap.Lines)
		candidate.LineID = lineID
		snap.Lines = append(snap.Lines, candidate)
	}

	if err := b.persist(ctx, snap); err != nil {
		return "", err
	}
	return lineID, nil
}

func (b *LocalBackend) SetQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return nil
	}
	snap, err := b.Load(ctx)
	if err != nil {
		return err
	}
	line := snap.Find(lineID)
	if line == nil {
		return nil
	}
	line.Quantity = quantity
	return b.persist(ctx, snap)
}

func (b *LocalBackend) Remove(ctx context.Context, lineID string) error {
	return b.RemoveMany(ctx, []string{lineID})
}

func (b *LocalBackend) RemoveMany(ctx context.Context, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	snap, err := b.Load(ctx)
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = struct{}{}
	}
	kept := snap.Lines[:0]
	for _, line := range snap.Lines {
		if _, ok := drop[line.LineID]; !ok {
			kept = append(kept, line)
		}
	}
	snap.Lines = kept
	return b.persist(ctx, snap)
}

// Clear empties the slot. Used after a successful merge into a member cart.
func (b *LocalBackend) Clear(ctx context.Context) error {
	return b.slot.Clear(ctx)
}

func (b *LocalBackend) persist(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.Lines)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	return b.slot.Write(ctx, payload)
}

// nextLocalID returns a token strictly greater than every local id already in
// the snapshot, so ids stay unique and monotonic within a guest cart.
func nextLocalID(lines []LineItem) string {
	max := int64(0)
	for _, line := range lines {
		raw, ok := strings.CutPrefix(line.LineID, localIDPrefix)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return localIDPrefix + strconv.FormatInt(max+1, 10)
}
