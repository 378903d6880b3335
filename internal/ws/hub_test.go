package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := startHub(t)

	client := &Client{
		hub:  hub,
		send: make(chan []byte, 1),
	}

	hub.register <- client
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open, "send channel is closed on unregister")
}

func TestHub_Publish(t *testing.T) {
	hub := startHub(t)

	client := &Client{
		hub:  hub,
		send: make(chan []byte, 10),
	}

	hub.register <- client
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(EventIdentityRegistered, map[string]string{"label": "alice"})

	select {
	case msg := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventIdentityRegistered, event.Type)
		assert.NotEmpty(t, event.ID)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_SubscriptionFilter(t *testing.T) {
	hub := startHub(t)

	matchesOnly := &Client{
		hub:    hub,
		events: parseEvents("match.result"),
		send:   make(chan []byte, 10),
	}
	everything := &Client{
		hub:  hub,
		send: make(chan []byte, 10),
	}

	hub.register <- matchesOnly
	hub.register <- everything
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish(EventFrameSkipped, map[string]string{"reason": "busy"})

	select {
	case <-everything.send:
	case <-time.After(time.Second):
		t.Fatal("unfiltered client should receive every event")
	}

	select {
	case <-matchesOnly.send:
		t.Fatal("filtered client should not receive frame.skipped")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)

	slow := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(EventMatchResult, nil)

	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-client.send
	assert.False(t, open)
}

func TestParseEvents(t *testing.T) {
	assert.Empty(t, parseEvents(""))
	assert.Equal(t, map[EventType]bool{
		EventMatchResult:   true,
		EventGallerySynced: true,
	}, parseEvents(" match.result, gallery.synced ,"))
}

type countingPublisher struct {
	events []EventType
}

func (c *countingPublisher) Publish(eventType EventType, _ interface{}) {
	c.events = append(c.events, eventType)
}

func TestFanout(t *testing.T) {
	a := &countingPublisher{}
	b := &countingPublisher{}

	pub := Fanout(a, nil, b)
	pub.Publish(EventIdentityMatched, nil)
	pub.Publish(EventGallerySynced, nil)

	assert.Equal(t, []EventType{EventIdentityMatched, EventGallerySynced}, a.events)
	assert.Equal(t, a.events, b.events)
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped

	unregistered := make(chan struct{})
	go func() {
		hub.Unregister(client)
		close(unregistered)
	}()

	select {
	case <-unregistered:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after the hub stopped")
	}

	assert.False(t, hub.Register(&Client{hub: hub, send: make(chan []byte, 1)}))
	assert.Equal(t, 0, hub.ConnectedClients())
}
