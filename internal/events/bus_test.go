package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeDeliversUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus()

	ch, err := Subscribe[ThemeChanged](ctx, bus, TopicThemeChanged)
	require.NoError(t, err)

	Publish(ctx, bus, TopicThemeChanged, ThemeChanged{Theme: "dark"})
	select {
	case ev := <-ch:
		require.Equal(t, "dark", ev.Theme)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeIgnoresOtherTopics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus()

	ch, err := Subscribe[StateChanged](ctx, bus, TopicStateChanged)
	require.NoError(t, err)

	Publish(ctx, bus, TopicThemeChanged, ThemeChanged{Theme: "light"})
	Publish(ctx, bus, TopicStateChanged, StateChanged{From: "A", To: "B"})

	select {
	case ev := <-ch:
		require.Equal(t, StateChanged{From: "A", To: "B"}, ev)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestPublishDoesNotBlockOnIdleSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus()

	ch, err := Subscribe[AssignmentRequired](ctx, bus, TopicAssignmentRequired)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize*2; i++ {
			Publish(ctx, bus, TopicAssignmentRequired, AssignmentRequired{ScreenIDs: []int{i}})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a subscriber that is not reading")
	}

	ev := <-ch
	require.Equal(t, []int{0}, ev.ScreenIDs)
}

func TestPublishCancelledContextStillDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus()

	ch, err := Subscribe[ThemeChanged](ctx, bus, TopicThemeChanged)
	require.NoError(t, err)

	done, stop := context.WithCancel(context.Background())
	stop()
	Publish(done, bus, TopicThemeChanged, ThemeChanged{Theme: "system"})

	select {
	case ev := <-ch:
		require.Equal(t, "system", ev.Theme)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
