package cart

import (
	"context"
)

// CommerceAPI is the slice of the commerce backend the member cart needs.
type CommerceAPI interface {
	FetchCart(ctx context.Context) ([]LineItem, error)
	AddCartLine(ctx context.Context, input AddInput) (string, error)
	UpdateCartLine(ctx context.Context, lineID string, quantity int) error
	DeleteCartLines(ctx context.Context, lineIDs []string) error
	MergeCartLines(ctx context.Context, inputs []AddInput) error
}

// RemoteBackend serves the member cart through the commerce backend. The
// backend owns line ids and catalog data, so every mutation round-trips.
type RemoteBackend struct {
	api CommerceAPI
}

func NewRemoteBackend(api CommerceAPI) *RemoteBackend {
	return &RemoteBackend{api: api}
}

func (b *RemoteBackend) Mode() Mode { return ModeMember }

func (b *RemoteBackend) Load(ctx context.Context) (Snapshot, error) {
	lines, err := b.api.FetchCart(ctx)
	if err != nil {
		return Snapshot{Mode: ModeMember}, err
	}
	return Snapshot{Mode: ModeMember, Lines: lines}, nil
}

// Add sends only the buyer's intent; the commerce backend resolves prices,
// discounts, and merge-by-identity on its side.
func (b *RemoteBackend) Add(ctx context.Context, candidate LineItem) (string, error) {
	return b.api.AddCartLine(ctx, AddInput{
		ItemID:           candidate.ItemID,
		Quantity:         candidate.Quantity,
		OptionLabel:      candidate.OptionLabel,
		OptionExtraPrice: candidate.OptionExtraPrice,
	})
}

func (b *RemoteBackend) SetQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return nil
	}
	return b.api.UpdateCartLine(ctx, lineID, quantity)
}

func (b *RemoteBackend) Remove(ctx context.Context, lineID string) error {
	return b.api.DeleteCartLines(ctx, []string{lineID})
}

func (b *RemoteBackend) RemoveMany(ctx context.Context, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	return b.api.DeleteCartLines(ctx, lineIDs)
}

// Merge pushes guest lines into the member cart in one batch.
func (b *RemoteBackend) Merge(ctx context.Context, lines []LineItem) error {
	if len(lines) == 0 {
		return nil
	}
	inputs := make([]AddInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, AddInput{
			ItemID:           line.ItemID,
			Quantity:         line.Quantity,
			OptionLabel:      line.OptionLabel,
			OptionExtraPrice: line.OptionExtraPrice,
		})
	}
	return b.api.MergeCartLines(ctx, inputs)
}
