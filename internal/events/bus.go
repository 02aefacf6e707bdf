// Package events carries in-process notifications between the coordinator,
// the theme synchronizer and whatever presentation layer is attached.
package events

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/eventbus"
)

const (
	// TopicThemeChanged carries a ThemeChanged.
	TopicThemeChanged = "theme.changed"
	// TopicAssignmentRequired carries an AssignmentRequired.
	TopicAssignmentRequired = "screens.assignment_required"
	// TopicStateChanged carries a StateChanged.
	TopicStateChanged = "coordinator.state_changed"
)

// queueSize is the number of undelivered events a subscriber may hold before
// newer ones are dropped.
const queueSize = 16

// Bus is a topic based publish/subscribe hub. A topic carries exactly one
// event type.
type Bus struct {
	bus *eventbus.EventBus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: eventbus.New()}
}

// Publish sends ev to every subscriber of topic. It never waits on a slow
// subscriber; events that do not fit its queue are dropped.
func Publish[E any](ctx context.Context, b *Bus, topic string, ev E) {
	if b == nil {
		return
	}
	res := eventbus.SendEventWithCustomTopic(context.WithoutCancel(ctx), b.bus, topic, ev)
	if dropped := res.DropCountImmediate + res.DropCountDeferred; dropped > 0 {
		logger.Warnf(ctx, "%d subscriber(s) missed a %q event", dropped, topic)
	}
}

// Subscribe delivers events published on topic to the returned channel until
// ctx is done, then closes it.
func Subscribe[E any](ctx context.Context, b *Bus, topic string) (<-chan E, error) {
	if b == nil {
		return nil, fmt.Errorf("unable to subscribe to %q: no bus", topic)
	}
	sub := eventbus.SubscribeWithCustomTopic[string, E](
		ctx, b.bus, topic,
		eventbus.OptionQueueSize(queueSize),
		eventbus.OptionOnOverflow(eventbus.OnOverflowDrop{}),
	)
	if sub == nil {
		return nil, fmt.Errorf("unable to subscribe to %q: %w", topic, context.Cause(ctx))
	}

	go func() {
		<-ctx.Done()
		sub.Finish(context.Background())
	}()
	return sub.EventChan(), nil
}
