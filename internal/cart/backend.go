package cart

import "context"

// Backend is the storage strategy behind a Store. Exactly one implementation
// is selected at session start: LocalBackend for guests, RemoteBackend for
// members.
type Backend interface {
	Mode() Mode
	Load(ctx context.Context) (Snapshot, error)
	// Add inserts or merges a candidate line and returns the resulting line id.
	Add(ctx context.Context, candidate LineItem) (string, error)
	SetQuantity(ctx context.Context, lineID string, quantity int) error
	Remove(ctx context.Context, lineID string) error
	// RemoveMany deletes all the given lines atomically: on failure none are
	// considered removed.
	RemoveMany(ctx context.Context, lineIDs []string) error
}
