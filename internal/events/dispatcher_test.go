package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishInvokesSubscribersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventUserDisabled, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.UserID)
		return nil
	})
	d.Subscribe(EventUserDisabled, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.UserID)
		return nil
	})
	d.Subscribe(EventUserCreated, func(_ context.Context, e Event) error {
		got = append(got, "created")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventUserDisabled, UserID: "u1"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first:u1", "second:u1"}, got)
}

func TestPublishContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	called := false
	d.Subscribe(EventUserUpdated, func(context.Context, Event) error { return boom })
	d.Subscribe(EventUserUpdated, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventUserUpdated})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventUserCreated}))
}
