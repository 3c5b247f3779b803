package events

import (
	"context"
	"sync"
	"time"
)

const feedCapacity = 256

// Feed buffers events for one widget session so the view can drain them
// over a long poll. Oldest entries are dropped when the buffer is full; the
// view resynchronizes through the open-thread response in that case.
type Feed struct {
	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{wake: make(chan struct{}, 1)}
}

// Push appends an event and wakes a waiting drain.
func (f *Feed) Push(event Event) {
	f.mu.Lock()
	if len(f.pending) >= feedCapacity {
		f.pending = f.pending[1:]
	}
	f.pending = append(f.pending, event)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Drain returns buffered events, waiting up to maxWait when empty.
func (f *Feed) Drain(ctx context.Context, maxWait time.Duration) []Event {
	if out := f.take(); len(out) > 0 {
		return out
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-f.wake:
		return f.take()
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (f *Feed) take() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil
	}
	out := f.pending
	f.pending = nil
	return out
}
