package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDrainReturnsBuffered(t *testing.T) {
	feed := NewFeed()
	feed.Push(Event{Type: EventTyping})
	feed.Push(Event{Type: EventMessageRendered})

	out := feed.Drain(context.Background(), time.Second)
	require.Len(t, out, 2)
	assert.Equal(t, EventTyping, out[0].Type)
	assert.Equal(t, EventMessageRendered, out[1].Type)

	// Drained events are gone.
	assert.Nil(t, feed.Drain(context.Background(), 10*time.Millisecond))
}

func TestFeedDrainWakesOnPush(t *testing.T) {
	feed := NewFeed()

	go func() {
		time.Sleep(20 * time.Millisecond)
		feed.Push(Event{Type: EventSystemBanner})
	}()

	start := time.Now()
	out := feed.Drain(context.Background(), 2*time.Second)
	require.Len(t, out, 1)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFeedDrainHonorsContext(t *testing.T) {
	feed := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.Nil(t, feed.Drain(ctx, 2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFeedDropsOldestWhenFull(t *testing.T) {
	feed := NewFeed()
	for i := 0; i < feedCapacity+10; i++ {
		feed.Push(Event{ID: fmt.Sprintf("%d", i)})
	}

	out := feed.Drain(context.Background(), time.Second)
	require.Len(t, out, feedCapacity)
	assert.Equal(t, "10", out[0].ID)
	assert.Equal(t, fmt.Sprintf("%d", feedCapacity+9), out[len(out)-1].ID)
}

func TestDispatcherFillsIDAndTimestamp(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got Event
	d.SubscribeAll(func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTyping}))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestDispatcherRoutesByType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var typed, all int
	d.Subscribe(EventTyping, func(context.Context, Event) error {
		typed++
		return nil
	})
	d.SubscribeAll(func(context.Context, Event) error {
		all++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTyping}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventSystemBanner}))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
}
