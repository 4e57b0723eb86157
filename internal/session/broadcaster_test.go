package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TWRT/smarttask/internal/models"
)

func TestBroadcaster_DeliversInOrder(t *testing.T) {
	b := NewBroadcaster()
	var got []string
	b.Subscribe(func(models.SessionEvent) { got = append(got, "first") })
	b.Subscribe(func(models.SessionEvent) { got = append(got, "second") })

	b.Publish(models.SessionEvent{Type: models.SessionSignedIn})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBroadcaster_UnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	calls := 0
	unsubscribe := b.Subscribe(func(models.SessionEvent) { calls++ })
	other := b.Subscribe(func(models.SessionEvent) {})

	unsubscribe()
	unsubscribe()
	b.Publish(models.SessionEvent{Type: models.SessionSignedOut})

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, b.Len())
	other()
	assert.Equal(t, 0, b.Len())
}

func TestBroadcaster_HandlerMayUnsubscribeDuringDelivery(t *testing.T) {
	b := NewBroadcaster()
	calls := 0
	var unsubscribe func()
	unsubscribe = b.Subscribe(func(models.SessionEvent) {
		calls++
		unsubscribe()
	})

	b.Publish(models.SessionEvent{Type: models.SessionSignedIn})
	b.Publish(models.SessionEvent{Type: models.SessionSignedIn})

	assert.Equal(t, 1, calls)
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	calls := 0
	b.Subscribe(func(models.SessionEvent) { calls++ })
	b.Close()

	b.Publish(models.SessionEvent{Type: models.SessionSignedIn})
	unsubscribe := b.Subscribe(func(models.SessionEvent) { calls++ })
	unsubscribe()
	b.Publish(models.SessionEvent{Type: models.SessionSignedIn})

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, b.Len())
}
