// Package notify delivers repository and preference change events to subscribers.
package notify

import (
	"sync"
)

// Topic names an event.
type Topic string

const (
	NewApplication     Topic = "new-application"
	NewApplications    Topic = "new-applications"
	RemoveApplication  Topic = "remove-application"
	NewUtility         Topic = "new-utility"
	NewInstaller       Topic = "new-installer"
	RemoveInstaller    Topic = "remove-installer"
	ReloadApplications Topic = "reload-applications"
	RefreshRepository  Topic = "refresh-repository"
	NewDisks           Topic = "new-disks"
	NewShares          Topic = "new-shares"
	DiskImageMounted   Topic = "disk-image-mounted"
	DiskImageUnmounted Topic = "disk-image-unmounted"
	PreferencesLoaded  Topic = "preferences-loaded"
	PreferencesUpdated Topic = "preferences-updated"
)

// Event is a single notification. The payload type depends on the topic.
type Event struct {
	Topic   Topic
	Payload interface{}
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
	topics  map[Topic]struct{}
}

func (s *subscription) wants(t Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]

	return ok
}

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given topics, or for every topic when none are given. The returned function
// removes the subscription.
func (b *Bus) Subscribe(handler Handler, topics ...Topic) (cancel func()) {
	sub := &subscription{handler: handler, topics: make(map[Topic]struct{}, len(topics))}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(sub.id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every interested subscriber before returning. Handlers may publish or subscribe
// themselves.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, s := range subs {
		if s.wants(topic) {
			s.handler(ev)
		}
	}
}
