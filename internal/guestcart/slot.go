// Package guestcart persists the anonymous cart snapshot in a single named
// slot, the gateway's analog of browser-scoped storage. Reads are fail-soft:
// a missing slot yields no data and corrupt payloads are the caller's to
// discard.
package guestcart

import "context"

// Slot is one durable storage cell holding a serialized guest snapshot.
type Slot interface {
	// Read returns the raw payload, or nil when the slot is empty.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Clear(ctx context.Context) error
}
