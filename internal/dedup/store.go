// Package dedup rejects replayed webhook deliveries. Each backend
// implements an atomic insert-if-absent over a TTL window so that, for
// any number of concurrent calls with the same event id, exactly one
// caller observes false and processes the event.
package dedup

import "context"

// Store is the replay-detection window keyed by provider event id.
type Store interface {
	// Seen records eventID and reports whether it was already present
	// within the TTL window. The first caller for a novel id gets
	// false; every other caller within the window gets true.
	Seen(ctx context.Context, eventID string) (bool, error)
}
