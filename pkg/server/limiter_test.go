package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterCapacity(t *testing.T) {
	l := NewLimiter(2)
	require.Equal(t, 2, l.Capacity())

	a, err := l.TryAcquire()
	require.NoError(t, err)
	b, err := l.TryAcquire()
	require.NoError(t, err)

	_, err = l.TryAcquire()
	require.ErrorIs(t, err, ErrLimiterFull)

	a.Release()
	c, err := l.TryAcquire()
	require.NoError(t, err)

	b.Release()
	c.Release()
	require.Equal(t, 2, l.Available())
}

func TestLimiterBlockingAcquire(t *testing.T) {
	l := NewLimiter(1)

	held, err := l.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan *Permit)
	go func() {
		p, err := l.Acquire(context.Background())
		require.NoError(t, err)
		acquired <- p
	}()

	select {
	case <-acquired:
		t.Fatal("acquire should block while the limiter is full")
	case <-time.After(50 * time.Millisecond):
	}

	held.Release()

	select {
	case p := <-acquired:
		p.Release()
	case <-time.After(time.Second):
		t.Fatal("acquire should resume after a release")
	}
}

func TestLimiterClose(t *testing.T) {
	l := NewLimiter(1)

	held, err := l.Acquire(context.Background())
	require.NoError(t, err)

	// A pending acquire fails once the limiter closes.
	pending := make(chan error)
	go func() {
		_, err := l.Acquire(context.Background())
		pending <- err
	}()

	time.Sleep(20 * time.Millisecond)
	l.Close()
	l.Close()
	require.True(t, l.IsClosed())

	require.ErrorIs(t, <-pending, ErrLimiterClosed)

	_, err = l.Acquire(context.Background())
	require.ErrorIs(t, err, ErrLimiterClosed)
	_, err = l.TryAcquire()
	require.ErrorIs(t, err, ErrLimiterClosed)

	// Issued permits survive close and can still be released.
	held.Release()
}

func TestLimiterAcquireContext(t *testing.T) {
	l := NewLimiter(1)

	held, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterStress(t *testing.T) {
	const (
		capacity  = 4
		producers = 32
		rounds    = 50
	)

	l := NewLimiter(capacity)

	var held atomic.Int64
	var peak atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				p, err := l.Acquire(context.Background())
				require.NoError(t, err)

				now := held.Add(1)
				for {
					prev := peak.Load()
					if now <= prev || peak.CompareAndSwap(prev, now) {
						break
					}
				}

				time.Sleep(time.Millisecond)
				held.Add(-1)
				p.Release()
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int64(capacity))
	require.Equal(t, capacity, l.Available())
}

func TestPermitReleaseIdempotent(t *testing.T) {
	l := NewLimiter(1)

	p, err := l.TryAcquire()
	require.NoError(t, err)

	p.Release()
	p.Release()
	require.Equal(t, 1, l.Available())
}
