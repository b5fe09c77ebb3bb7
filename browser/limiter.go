package browser

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is the process-wide ceiling on open browser sessions. It never
// queues: an acquisition beyond capacity fails immediately.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
}

// NewLimiter creates a Limiter allowing n concurrent sessions. n < 1 is
// treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: n,
	}
}

// TryAcquire takes a slot if one is free.
func (l *Limiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.inUse.Add(1)
	return true
}

// Release returns a slot taken by TryAcquire.
func (l *Limiter) Release() {
	l.inUse.Add(-1)
	l.sem.Release(1)
}

// InUse returns the number of slots currently held.
func (l *Limiter) InUse() int { return int(l.inUse.Load()) }

// Capacity returns the configured ceiling.
func (l *Limiter) Capacity() int { return l.capacity }
