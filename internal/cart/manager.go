package cart

import (
	"sync"

	"github.com/marketbloom/storefront-gateway/internal/guestcart"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

// SlotFactory builds the durable slot backing one guest's cart.
type SlotFactory func(guestToken string) (guestcart.Slot, error)

// Cache caps. Every anonymous request can mint a fresh token, so idle
// entries are evicted least-recently-used once the cap is hit. Losing an
// entry only drops the stale-read snapshot; the durable guest slot and the
// backend cart are untouched.
const (
	maxGuestStores  = 4096
	maxMemberStores = 4096
)

// Manager hands out Stores keyed by session identity, so a shopper keeps the
// same store (and its last-known-good snapshot) across requests.
type Manager struct {
	api   CommerceAPI
	slots SlotFactory
	logg  *logger.Logger

	mu     sync.Mutex
	clock  uint64
	guest  map[string]*guestEntry
	member map[string]*memberEntry
}

type guestEntry struct {
	store *Store
	local *LocalBackend
	seen  uint64
}

type memberEntry struct {
	store *Store
	seen  uint64
}

func NewManager(api CommerceAPI, slots SlotFactory, logg *logger.Logger) (*Manager, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commerce api required")
	}
	if slots == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "guest slot factory required")
	}
	return &Manager{
		api:    api,
		slots:  slots,
		logg:   logg,
		guest:  make(map[string]*guestEntry),
		member: make(map[string]*memberEntry),
	}, nil
}

// Guest returns the store for a guest token, plus the local backend the merge
// endpoint drains at sign-in.
func (m *Manager) Guest(token string) (*Store, *LocalBackend, error) {
	if token == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "guest token required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.guest[token]; ok {
		entry.seen = m.tick()
		return entry.store, entry.local, nil
	}

	slot, err := m.slots(token)
	if err != nil {
		return nil, nil, err
	}
	local, err := NewLocalBackend(slot, m.logg)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewStore(local, m.logg)
	if err != nil {
		return nil, nil, err
	}
	m.guest[token] = &guestEntry{store: store, local: local, seen: m.tick()}
	m.evictGuests()
	return store, local, nil
}

// Member returns the store for a signed-in member. The commerce client reads
// the bearer token from the request context, so one remote backend serves
// every member; what is cached per member is the stale-read snapshot.
func (m *Manager) Member(memberID string) (*Store, error) {
	if memberID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "member id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.member[memberID]; ok {
		entry.seen = m.tick()
		return entry.store, nil
	}
	store, err := NewStore(NewRemoteBackend(m.api), m.logg)
	if err != nil {
		return nil, err
	}
	m.member[memberID] = &memberEntry{store: store, seen: m.tick()}
	m.evictMembers()
	return store, nil
}

// DropGuest forgets a guest's store after its cart merged into an account.
func (m *Manager) DropGuest(token string) {
	m.mu.Lock()
	delete(m.guest, token)
	m.mu.Unlock()
}

func (m *Manager) tick() uint64 {
	m.clock++
	return m.clock
}

func (m *Manager) evictGuests() {
	for len(m.guest) > maxGuestStores {
		oldest, low := "", uint64(0)
		for token, entry := range m.guest {
			if oldest == "" || entry.seen < low {
				oldest, low = token, entry.seen
			}
		}
		delete(m.guest, oldest)
	}
}

func (m *Manager) evictMembers() {
	for len(m.member) > maxMemberStores {
		oldest, low := "", uint64(0)
		for id, entry := range m.member {
			if oldest == "" || entry.seen < low {
				oldest, low = id, entry.seen
			}
		}
		delete(m.member, oldest)
	}
}
