package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/ratelimit"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

type fakeClient struct {
	mu        sync.Mutex
	invalid   map[string]bool
	checkErr  map[string]error
	sendErr   map[string]error
	checked   []string
	sent      []string
	afterSend func(n int)
	events    chan session.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		invalid:  map[string]bool{},
		checkErr: map[string]error{},
		sendErr:  map[string]error{},
		events:   make(chan session.Event),
	}
}

func (f *fakeClient) Initialize(ctx context.Context) error { return nil }
func (f *fakeClient) Events() <-chan session.Event        { return f.events }
func (f *fakeClient) Logout(ctx context.Context) error     { return nil }
func (f *fakeClient) Destroy(ctx context.Context) error    { return nil }

func (f *fakeClient) IsRegisteredUser(ctx context.Context, recipient string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, recipient)
	if err := f.checkErr[recipient]; err != nil {
		return false, err
	}
	return !f.invalid[recipient], nil
}

func (f *fakeClient) SendMessage(ctx context.Context, recipient string, content session.Content) error {
	f.mu.Lock()
	if err := f.sendErr[recipient]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, recipient)
	n := len(f.sent)
	hook := f.afterSend
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (f *fakeClient) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeClient) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checked)
}

type entry struct {
	client  session.Client
	status  session.Status
	touches int
}

type fakeSessions struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{entries: map[string]*entry{}}
}

func (s *fakeSessions) add(id string, client session.Client, status session.Status) {
	s.mu.Lock()
	s.entries[id] = &entry{client: client, status: status}
	s.mu.Unlock()
}

func (s *fakeSessions) remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

func (s *fakeSessions) Client(id string) (session.Client, session.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, "", session.ErrNotFound
	}
	return e.client, e.status, nil
}

func (s *fakeSessions) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return session.ErrNotFound
	}
	e.touches++
	return nil
}

func (s *fakeSessions) touchCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.touches
	}
	return 0
}

type fakeLimiter struct {
	mu       sync.Mutex
	full     bool
	timeouts map[int]bool
	awaits   int
	records  int
}

func (l *fakeLimiter) CheckLimit(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.full
}

func (l *fakeLimiter) Record(id string) {
	l.mu.Lock()
	l.records++
	l.mu.Unlock()
}

func (l *fakeLimiter) AwaitSlot(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.awaits++
	if l.timeouts[l.awaits] {
		return errTimeout
	}
	return nil
}

func (l *fakeLimiter) recordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records
}

var errTimeout = fmt.Errorf("await slot: %w", ratelimit.ErrTimeout)

type recordingPacer struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *recordingPacer) Pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.pauses = append(p.pauses, d)
	p.mu.Unlock()
	return nil
}

func (p *recordingPacer) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.pauses {
		if got == d {
			n++
		}
	}
	return n
}

var testOptions = Options{
	BatchSize:     20,
	MessageDelay:  time.Millisecond,
	BatchDelay:    5 * time.Millisecond,
	RecoveryDelay: 50 * time.Millisecond,
}
