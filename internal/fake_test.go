package internal

import (
	"context"
	"os"
	"sync"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

type fakeClient struct {
	mu           sync.Mutex
	events       chan session.Event
	closed       bool
	sent         []string
	unregistered map[string]bool
	groups       map[string]string
	resume       bool
}

func (f *fakeClient) Initialize(ctx context.Context) error {
	if f.resume {
		f.Emit(session.Event{Type: session.EventReady})
		return nil
	}
	f.Emit(session.Event{Type: session.EventQR, QR: "qr-payload"})
	return nil
}

func (f *fakeClient) Events() <-chan session.Event {
	return f.events
}

func (f *fakeClient) Emit(evt session.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- evt
	}
}

func (f *fakeClient) SendMessage(ctx context.Context, recipient string, content session.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipient)
	return nil
}

func (f *fakeClient) IsRegisteredUser(ctx context.Context, recipient string) (bool, error) {
	return !f.unregistered[recipient], nil
}

func (f *fakeClient) FindGroupID(ctx context.Context, name string) (string, error) {
	id, ok := f.groups[name]
	if !ok {
		return "", session.ErrGroupNotFound
	}
	return id, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	return nil
}

func (f *fakeClient) Destroy(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeClient) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeFactory struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{clients: make(map[string]*fakeClient)}
}

func (f *fakeFactory) NewClient(id string, dir string, resume bool) (session.Client, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	c := &fakeClient{
		events:       make(chan session.Event, 16),
		unregistered: map[string]bool{"6289999999999@s.whatsapp.net": true},
		groups:       map[string]string{"Team": "120363025246125486@g.us"},
		resume:       resume,
	}

	f.mu.Lock()
	f.clients[id] = c
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) client(id string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[id]
}
