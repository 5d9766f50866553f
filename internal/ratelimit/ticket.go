package ratelimit

// Ticket is the opaque handle reserve() hands back, consumed by exactly
// one of commit() or rollback(). It carries enough to find its own
// bucket entries again without scanning by timestamp alone, since two
// reserves in the same provider can land on the same wall-clock
// nanosecond under load.
type Ticket struct {
	Provider string
	seq      uint64
}
