package whatsapp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

func newEventClient(authTimeout time.Duration) *Client {
	return &Client{
		id:     "session-1",
		cfg:    Config{AuthTimeout: authTimeout},
		events: make(chan session.Event, eventBufferSize),
		done:   make(chan struct{}),
	}
}

func nextEvent(t *testing.T, c *Client) session.Event {
	t.Helper()
	select {
	case evt := <-c.events:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event emitted")
		return session.Event{}
	}
}

func TestStoreDSN(t *testing.T) {
	dsn := storeDSN("sessions/abc")
	assert.True(t, strings.HasPrefix(dsn, "file:sessions/abc/store.db?"))
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")
	assert.Contains(t, dsn, "_pragma=busy_timeout(5000)")
}

func TestHandleEventMapping(t *testing.T) {
	c := newEventClient(time.Hour)

	c.handleEvent(&events.Connected{})
	assert.Equal(t, session.EventReady, nextEvent(t, c).Type)

	c.handleEvent(&events.StreamReplaced{})
	evt := nextEvent(t, c)
	assert.Equal(t, session.EventDisconnected, evt.Type)
	assert.Equal(t, ReasonConflict, evt.Reason)
	assert.False(t, evt.Revoking())

	c.handleEvent(&events.Disconnected{})
	evt = nextEvent(t, c)
	assert.Equal(t, ReasonConnectionLost, evt.Reason)

	c.handleEvent(&events.LoggedOut{Reason: events.ConnectFailureLoggedOut})
	evt = nextEvent(t, c)
	assert.True(t, evt.Revoking())

	c.handleEvent(&events.ClientOutdated{})
	assert.Equal(t, session.EventFatal, nextEvent(t, c).Type)

	c.handleEvent(&events.Message{Info: types.MessageInfo{MessageSource: types.MessageSource{IsFromMe: false}}})
	assert.Equal(t, session.EventMessage, nextEvent(t, c).Type)

	c.handleEvent(&events.Message{Info: types.MessageInfo{MessageSource: types.MessageSource{IsFromMe: true}}})
	c.handleEvent(&events.KeepAliveTimeout{ErrorCount: 1})
	assert.Empty(t, c.events)
}

func TestHandleConnectFailure(t *testing.T) {
	c := newEventClient(time.Hour)

	c.handleEvent(&events.ConnectFailure{Reason: events.ConnectFailureLoggedOut})
	assert.True(t, nextEvent(t, c).Revoking())

	c.handleEvent(&events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable})
	assert.Equal(t, session.EventAuthFailure, nextEvent(t, c).Type)

	c.handleEvent(&events.Connected{})
	nextEvent(t, c)
	c.handleEvent(&events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable})
	evt := nextEvent(t, c)
	assert.Equal(t, session.EventDisconnected, evt.Type)
	assert.Equal(t, ReasonConnectFailure, evt.Reason)
}

func TestAuthTimerFiresWithoutProgress(t *testing.T) {
	c := newEventClient(20 * time.Millisecond)
	c.armAuthTimer()

	evt := nextEvent(t, c)
	assert.Equal(t, session.EventAuthFailure, evt.Type)
	assert.ErrorIs(t, evt.Err, ErrAuthTimeout)
}

func TestAuthTimerStoppedByReady(t *testing.T) {
	c := newEventClient(30 * time.Millisecond)
	c.armAuthTimer()
	c.handleEvent(&events.Connected{})
	assert.Equal(t, session.EventReady, nextEvent(t, c).Type)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, c.events)
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	c := newEventClient(time.Hour)

	c.closeEvents()

	c.emit(session.Event{Type: session.EventReady})
	_, open := <-c.events
	require.False(t, open)
}

func fillEvents(c *Client) {
	for i := 0; i < eventBufferSize; i++ {
		c.emit(session.Event{Type: session.EventMessage})
	}
}

func TestEmitDropsMessagesWhenFull(t *testing.T) {
	c := newEventClient(time.Hour)
	fillEvents(c)

	c.emit(session.Event{Type: session.EventMessage})
	assert.Len(t, c.events, eventBufferSize)
}

func TestEmitWaitsForRoomForStatusEvents(t *testing.T) {
	c := newEventClient(time.Hour)
	fillEvents(c)

	sent := make(chan struct{})
	go func() {
		c.emit(session.Event{Type: session.EventDisconnected, Reason: ReasonConnectionLost})
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("status event should wait for room")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, session.EventMessage, nextEvent(t, c).Type)
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("status event was not delivered")
	}

	var last session.Event
	for len(c.events) > 0 {
		last = <-c.events
	}
	assert.Equal(t, session.EventDisconnected, last.Type)
}

func TestCloseEventsReleasesWaitingEmit(t *testing.T) {
	c := newEventClient(time.Hour)
	fillEvents(c)

	sent := make(chan struct{})
	go func() {
		c.emit(session.Event{Type: session.EventReady})
		close(sent)
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		c.closeEvents()
		close(closed)
	}()

	for _, ch := range []chan struct{}{sent, closed} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("close blocked on a waiting emit")
		}
	}
}
