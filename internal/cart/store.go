package cart

import (
	"context"
	"sync"

	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

// Store is the single entry point for cart reads and writes. It wraps the
// active backend with a last-known-good snapshot so a flaky commerce backend
// degrades to stale data instead of an empty cart, and serializes mutations
// per line id so concurrent quantity taps cannot interleave.
type Store struct {
	backend Backend
	logg    *logger.Logger

	mu   sync.RWMutex
	last *Snapshot

	locks sync.Map // lineID -> *sync.Mutex
}

func NewStore(backend Backend, logg *logger.Logger) (*Store, error) {
	if backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart backend required")
	}
	return &Store{backend: backend, logg: logg}, nil
}

func (s *Store) Mode() Mode { return s.backend.Mode() }

// Load returns the current cart. When the backend read fails and a previous
// snapshot exists, the stale snapshot is returned with no error; the failure
// is only fatal on a cold start.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	snap, err := s.backend.Load(ctx)
	if err != nil {
		s.mu.RLock()
		cached := s.last
		s.mu.RUnlock()
		if cached != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "cart load failed, serving last snapshot")
			}
			return cached.Clone(), nil
		}
		return Snapshot{Mode: s.backend.Mode()}, err
	}
	s.remember(snap)
	return snap, nil
}

func (s *Store) Add(ctx context.Context, candidate LineItem) (Snapshot, error) {
	if _, err := s.backend.Add(ctx, candidate); err != nil {
		return Snapshot{Mode: s.backend.Mode()}, err
	}
	return s.reload(ctx)
}

// SetQuantity replaces a line's quantity. Quantities below one and unknown
// line ids are no-ops that still return the current snapshot.
func (s *Store) SetQuantity(ctx context.Context, lineID string, quantity int) (Snapshot, error) {
	unlock := s.lockLine(lineID)
	defer unlock()

	if err := s.backend.SetQuantity(ctx, lineID, quantity); err != nil {
		return Snapshot{Mode: s.backend.Mode()}, err
	}
	return s.reload(ctx)
}

func (s *Store) Remove(ctx context.Context, lineID string) (Snapshot, error) {
	unlock := s.lockLine(lineID)
	defer unlock()

	if err := s.backend.Remove(ctx, lineID); err != nil {
		return Snapshot{Mode: s.backend.Mode()}, err
	}
	return s.reload(ctx)
}

// RemoveMany deletes the given lines as one operation. Either all of them go
// or the cart is untouched.
func (s *Store) RemoveMany(ctx context.Context, lineIDs []string) (Snapshot, error) {
	if err := s.backend.RemoveMany(ctx, lineIDs); err != nil {
		return Snapshot{Mode: s.backend.Mode()}, err
	}
	return s.reload(ctx)
}

// MergeGuestCart pushes every line of the guest cart into the member cart,
// then clears the guest slot. Only a member-mode store can absorb a merge.
// The guest slot is cleared only after the batch lands, so a failed merge
// leaves the guest cart intact for a retry.
func (s *Store) MergeGuestCart(ctx context.Context, local *LocalBackend) (Snapshot, error) {
	if s.backend.Mode() != ModeMember {
		return Snapshot{Mode: s.backend.Mode()}, pkgerrors.New(pkgerrors.CodeConflict, "guest cart can only merge into a member cart")
	}
	remote, ok := s.backend.(*RemoteBackend)
	if !ok {
		return Snapshot{Mode: s.backend.Mode()}, pkgerrors.New(pkgerrors.CodeInternal, "member backend cannot absorb a merge")
	}

	guest, err := local.Load(ctx)
	if err != nil {
		return Snapshot{Mode: ModeMember}, err
	}
	if len(guest.Lines) == 0 {
		return s.reload(ctx)
	}

	if err := remote.Merge(ctx, guest.Lines); err != nil {
		return Snapshot{Mode: ModeMember}, err
	}
	if err := local.Clear(ctx); err != nil && s.logg != nil {
		// Merge already landed; a lingering slot only means the next merge
		// attempt is a harmless duplicate the backend dedupes by identity.
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "guest slot clear failed after merge")
	}
	return s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) (Snapshot, error) {
	snap, err := s.backend.Load(ctx)
	if err != nil {
		s.mu.RLock()
		cached := s.last
		s.mu.RUnlock()
		if cached != nil {
			return cached.Clone(), nil
		}
		return Snapshot{Mode: s.backend.Mode()}, err
	}
	s.remember(snap)
	return snap, nil
}

func (s *Store) remember(snap Snapshot) {
	clone := snap.Clone()
	s.mu.Lock()
	s.last = &clone
	s.mu.Unlock()
	s.pruneLocks(snap)
}

// pruneLocks drops per-line locks for lines no longer in the cart, so ids
// retired by removals and order commits do not accumulate. A writer racing
// a prune gets a fresh mutex for a line that no longer exists, and its
// operation is a no-op anyway.
func (s *Store) pruneLocks(snap Snapshot) {
	live := make(map[string]struct{}, len(snap.Lines))
	for _, line := range snap.Lines {
		live[line.LineID] = struct{}{}
	}
	s.locks.Range(func(key, _ any) bool {
		if _, ok := live[key.(string)]; !ok {
			s.locks.Delete(key)
		}
		return true
	})
}

func (s *Store) lockLine(lineID string) func() {
	muIface, _ := s.locks.LoadOrStore(lineID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
