package server

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrLimiterClosed is returned by Acquire and TryAcquire once the
	// limiter has been closed. A closed limiter never reopens.
	ErrLimiterClosed = errors.New("connection limiter is closed")

	// ErrLimiterFull is returned by TryAcquire when every admission slot
	// is held by a live connection.
	ErrLimiterFull = errors.New("connection limiter is at capacity")
)

// Limiter is a closable counting gate bounding the number of connections
// that may be live at once. The accept subsystem acquires one permit per
// connection before doing any work on it; the permit is released when the
// simulation entity created for that connection is destroyed.
//
// Closing the limiter is the server's "stop accepting new work" signal:
// pending and future acquires fail immediately, while permits already
// issued stay valid until released.
type Limiter struct {
	slots  chan struct{}
	closed chan struct{}
	once   sync.Once
}

func NewLimiter(capacity int) *Limiter {
	slots := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		slots <- struct{}{}
	}

	return &Limiter{
		slots:  slots,
		closed: make(chan struct{}),
	}
}

// Acquire blocks until an admission slot is free and returns a permit for
// it. It fails with ErrLimiterClosed if the limiter is closed before or
// while waiting, and with the context's error if ctx is done first.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	// Closing must win over a free slot, otherwise a shutdown decision
	// could be followed by a successful admission.
	select {
	case <-l.closed:
		return nil, ErrLimiterClosed
	default:
	}

	select {
	case <-l.closed:
		return nil, ErrLimiterClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.slots:
		select {
		case <-l.closed:
			l.slots <- struct{}{}
			return nil, ErrLimiterClosed
		default:
		}
		return &Permit{limiter: l}, nil
	}
}

// TryAcquire returns a permit without blocking, or ErrLimiterFull if no
// slot is free.
func (l *Limiter) TryAcquire() (*Permit, error) {
	select {
	case <-l.closed:
		return nil, ErrLimiterClosed
	default:
	}

	select {
	case <-l.slots:
		return &Permit{limiter: l}, nil
	default:
		return nil, ErrLimiterFull
	}
}

// Close permanently stops the limiter from issuing permits. Idempotent.
// Permits already issued are unaffected.
func (l *Limiter) Close() {
	l.once.Do(func() {
		close(l.closed)
	})
}

// IsClosed reports whether Close has been called.
func (l *Limiter) IsClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Capacity returns the total number of admission slots.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// Available returns the number of slots not currently held by a permit.
func (l *Limiter) Available() int {
	return len(l.slots)
}

// Permit represents occupancy of one admission slot. Exactly one live
// connection owns a given permit at a time; ownership transfers to the
// simulation entity spawned from the connection's handoff message.
type Permit struct {
	limiter *Limiter
	once    sync.Once
}

// Release frees the permit's slot. Releasing more than once has no
// effect.
func (p *Permit) Release() {
	p.once.Do(func() {
		p.limiter.slots <- struct{}{}
	})
}
