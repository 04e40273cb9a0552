package httpconn

import "context"

// Limiter is a counting semaphore bounding the number of requests a
// Connection has in flight at once. A buffered channel is Go's native
// counting semaphore, so unlike a goroutine-per-waiter implementation this
// needs no background bookkeeping: Acquire sends into the channel, Release
// receives from it.
type Limiter struct {
	slots chan struct{}
}

// DefaultLimiterCapacity is the concurrency ceiling applied when a
// Connection is built without an explicit capacity.
const DefaultLimiterCapacity = 10

// NewLimiter returns a Limiter allowing up to capacity concurrent holders.
// capacity <= 0 falls back to DefaultLimiterCapacity.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultLimiterCapacity
	}
	return &Limiter{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously obtained from Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
	default:
		// Release without a matching Acquire is a caller bug; ignore rather
		// than panic so a defer-heavy call site fails safe.
	}
}

// Free reports how many slots are currently unused.
func (l *Limiter) Free() int {
	return cap(l.slots) - len(l.slots)
}

// Capacity reports the total number of slots.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}
