package session

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu         sync.Mutex
	events     chan Event
	closed     bool
	initErr    error
	onInit     func(f *fakeClient)
	onDestroy  func()
	destroyErr error
	destroyed  int
	loggedOut  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan Event, 16)}
}

func (f *fakeClient) Initialize(ctx context.Context) error {
	if f.onInit != nil {
		f.onInit(f)
	}
	return f.initErr
}

func (f *fakeClient) Events() <-chan Event {
	return f.events
}

func (f *fakeClient) Emit(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- evt
}

func (f *fakeClient) SendMessage(ctx context.Context, recipient string, content Content) error {
	return nil
}

func (f *fakeClient) IsRegisteredUser(ctx context.Context, recipient string) (bool, error) {
	return true, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut++
	return nil
}

func (f *fakeClient) Destroy(ctx context.Context) error {
	f.mu.Lock()
	hook := f.onDestroy
	f.destroyed++
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	err := f.destroyErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeClient) setOnDestroy(fn func()) {
	f.mu.Lock()
	f.onDestroy = fn
	f.mu.Unlock()
}

func (f *fakeClient) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *fakeClient) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

type factoryCall struct {
	id     string
	dir    string
	resume bool
}

type fakeFactory struct {
	mu      sync.Mutex
	calls   []factoryCall
	clients []*fakeClient
	build   func(id string, resume bool) *fakeClient
	err     error
}

func (f *fakeFactory) NewClient(id string, dir string, resume bool) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, factoryCall{id: id, dir: dir, resume: resume})
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	var c *fakeClient
	if f.build != nil {
		c = f.build(id, resume)
	} else {
		c = newFakeClient()
		if resume {
			c.onInit = emitting(Event{Type: EventReady})
		} else {
			c.onInit = emitting(Event{Type: EventQR, QR: "qr-payload"})
		}
	}
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFactory) call(i int) factoryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeFactory) client(i int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[i]
}

func emitting(events ...Event) func(*fakeClient) {
	return func(f *fakeClient) {
		for _, evt := range events {
			f.Emit(evt)
		}
	}
}

func newTestController(t *testing.T, factory Factory, cfg ControllerConfig) (*Controller, *Registry, *Store) {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	registry := NewRegistry()
	cleaner := NewCleaner(registry, store, CleanerConfig{})
	ctrl := NewController(registry, store, factory, cleaner, nil, cfg)

	t.Cleanup(func() {
		_ = ctrl.Shutdown(context.Background())
	})
	return ctrl, registry, store
}
