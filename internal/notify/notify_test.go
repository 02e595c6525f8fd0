package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(func(e Event) { got = append(got, "first:"+string(e.Topic)) })
	bus.Subscribe(func(e Event) { got = append(got, "second:"+string(e.Topic)) }, NewInstaller)
	bus.Subscribe(func(e Event) { got = append(got, "third:"+string(e.Topic)) }, NewDisks)

	bus.Publish(NewInstaller, nil)

	assert.Equal(t, []string{"first:new-installer", "second:new-installer"}, got)
}

func TestBus_Payload(t *testing.T) {
	bus := NewBus()
	var got interface{}
	bus.Subscribe(func(e Event) { got = e.Payload }, PreferencesUpdated)

	bus.Publish(PreferencesUpdated, 42)

	assert.Equal(t, 42, got)
}

func TestBus_Cancel(t *testing.T) {
	bus := NewBus()
	calls := 0
	cancel := bus.Subscribe(func(Event) { calls++ })

	bus.Publish(RefreshRepository, nil)
	cancel()
	cancel()
	bus.Publish(RefreshRepository, nil)

	assert.Equal(t, 1, calls)
}

func TestBus_PublishFromHandler(t *testing.T) {
	bus := NewBus()
	var got []Topic

	bus.Subscribe(func(e Event) {
		got = append(got, e.Topic)
		if e.Topic == RefreshRepository {
			bus.Publish(NewDisks, nil)
		}
	})

	bus.Publish(RefreshRepository, nil)

	assert.Equal(t, []Topic{RefreshRepository, NewDisks}, got)
}
