package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

type ControllerConfig struct {
	// IdleTimeout is the inactivity after which a connected session is released. Zero disables the sweep.
	IdleTimeout time.Duration
	// MaxAutoReconnect caps consecutive automatic reconnects per id; the count resets on ready.
	MaxAutoReconnect int
	// ReconnectTimeout bounds one automatic reconnect attempt.
	ReconnectTimeout time.Duration
}

type InitResult struct {
	ID     string
	QR     string
	Status Status
}

// Controller drives session lifecycles: creation, event handling, idle
// reclamation and reconnection.
type Controller struct {
	registry *Registry
	store    *Store
	factory  Factory
	cleaner  *Cleaner
	notifier Notifier
	cfg      ControllerConfig
	newID    func() string

	mu             sync.Mutex
	autoReconnects map[string]int

	emergency singleflight.Group
	closed    atomic.Bool
	wg        sync.WaitGroup
}

func NewController(registry *Registry, store *Store, factory Factory, cleaner *Cleaner, notifier Notifier, cfg ControllerConfig) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.ReconnectTimeout <= 0 {
		cfg.ReconnectTimeout = time.Minute
	}
	return &Controller{
		registry:       registry,
		store:          store,
		factory:        factory,
		cleaner:        cleaner,
		notifier:       notifier,
		cfg:            cfg,
		newID:          uuid.NewString,
		autoReconnects: make(map[string]int),
	}
}

func (c *Controller) Registry() *Registry {
	return c.registry
}

// Initialize creates a new session and waits for its first QR code, or for
// it to connect without one.
func (c *Controller) Initialize(ctx context.Context) (InitResult, error) {
	if c.closed.Load() {
		return InitResult{}, ErrClosed
	}

	id := c.newID()
	client, err := c.factory.NewClient(id, c.store.Path(id), false)
	if err != nil {
		return InitResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return c.start(ctx, id, client, false)
}

// Reconnect restores a persisted session. It returns false without error
// when there is nothing on disk for id or the session is already live.
func (c *Controller) Reconnect(ctx context.Context, id string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if !c.store.Exists(id) {
		return false, nil
	}
	if _, err := c.registry.Get(id); err == nil {
		return false, nil
	}

	client, err := c.factory.NewClient(id, c.store.Path(id), true)
	if err != nil {
		if errors.Is(err, ErrPairingRequired) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if _, err := c.start(ctx, id, client, true); err != nil {
		if errors.Is(err, ErrExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Logout unlinks the account and removes every trace of the session.
func (c *Controller) Logout(ctx context.Context, id string) error {
	sess, err := c.registry.Get(id)
	if err != nil {
		return err
	}

	if err := sess.client.Logout(ctx); err != nil {
		log.Session(id, "logout").WithError(err).Warn("Logout request failed, cleaning up anyway")
	}

	c.cleaner.CleanupSession(ctx, id, ReasonLogout)
	c.forgetAutoReconnect(id)

	c.notifier.Notify(id, NotifyLoggedOut, nil)
	return nil
}

// Status returns the current status of id and counts the lookup as activity.
func (c *Controller) Status(id string) (StatusInfo, error) {
	if err := c.registry.Touch(id); err != nil {
		return StatusInfo{}, err
	}
	return c.registry.StatusOf(id)
}

// SweepIdle releases every connected session idle for at least the idle
// timeout as of now. Persisted credentials are kept.
func (c *Controller) SweepIdle(ctx context.Context, now time.Time) int {
	if c.cfg.IdleTimeout <= 0 {
		return 0
	}

	swept := 0
	for _, sess := range c.registry.List() {
		if sess.Status != StatusConnected || now.Sub(sess.LastActiveAt) < c.cfg.IdleTimeout {
			continue
		}

		marked := false
		_ = c.registry.update(sess.ID, sess.client, func(s *Session) {
			if s.Status == StatusConnected && now.Sub(s.LastActiveAt) >= c.cfg.IdleTimeout {
				s.Status = StatusIdle
				marked = true
			}
		})
		if !marked {
			continue
		}

		log.Session(sess.ID, "idle-sweep").
			WithField("last_active_at", sess.LastActiveAt.Format(time.RFC3339)).
			Info("Session idle, releasing client")

		c.cleaner.ReleaseSession(ctx, sess.ID, string(StatusIdle))
		c.notifier.Notify(sess.ID, NotifyIdle, map[string]interface{}{
			"last_active_at": sess.LastActiveAt,
		})
		swept++
	}
	return swept
}

// Shutdown stops accepting new sessions, releases every live client
// without deleting persisted data and waits for event loops to drain.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.closed.Store(true)
	c.cleaner.ReleaseAll(ctx, "shutdown")

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) start(ctx context.Context, id string, client Client, resumed bool) (InitResult, error) {
	entry := log.Session(id, "initialize").WithField("resumed", resumed)

	if err := c.registry.create(id, client, resumed); err != nil {
		_ = client.Destroy(context.WithoutCancel(ctx))
		return InitResult{}, err
	}

	p := newPending(!resumed)
	c.wg.Add(1)
	go c.pump(id, client, p)

	if err := client.Initialize(ctx); err != nil {
		entry.WithError(err).Error("Client initialization failed")
		c.discard(ctx, id, resumed, "initialize failed")
		if errors.Is(err, ErrPairingRequired) || errors.Is(err, ErrAuthFailure) {
			return InitResult{}, err
		}
		return InitResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	select {
	case out := <-p.done:
		if out.err != nil {
			entry.WithError(out.err).Warn("Session failed before becoming usable")
			c.discard(ctx, id, resumed, out.err.Error())
			return InitResult{}, out.err
		}
		entry.WithField("status", out.status).Info("Session initialized")
		return InitResult{ID: id, QR: out.qr, Status: out.status}, nil

	case <-ctx.Done():
		entry.WithError(ctx.Err()).Warn("Gave up waiting for session")
		c.discard(ctx, id, resumed, "initialize timeout")
		return InitResult{}, fmt.Errorf("%w: %v", ErrAuthFailure, ctx.Err())
	}
}

// pump delivers the client's events to the state machine, one at a time.
func (c *Controller) pump(id string, client Client, p *pending) {
	defer c.wg.Done()
	for evt := range client.Events() {
		c.handleEvent(id, client, evt, p)
	}
	p.fail(ErrClosed)
}

func (c *Controller) handleEvent(id string, client Client, evt Event, p *pending) {
	var (
		prev, next Status
		effects    []Effect
		resumed    bool
	)
	err := c.registry.update(id, client, func(s *Session) {
		prev = s.Status
		resumed = s.resumed
		next, effects = Transition(s.Status, evt)
		s.Status = next
		for _, e := range effects {
			switch e {
			case EffectSetQR:
				s.QR = evt.QR
			case EffectClearQR:
				s.QR = ""
				s.Error = ""
			case EffectTouch:
				s.LastActiveAt = c.registry.now()
			case EffectRecordError:
				s.Error = evt.describe()
			}
		}
	})
	if err != nil {
		return
	}

	entry := log.Session(id, "event").WithField("event", evt.Type)
	if prev != next {
		entry.WithField("from", prev).WithField("to", next).Info("Session status changed")
	}

	ctx := context.Background()
	for _, e := range effects {
		switch e {
		case EffectResolve:
			c.resolve(id, evt, next, p)
		case EffectReject:
			p.fail(eventError(evt))
		case EffectPurge:
			c.cleaner.CleanupSession(ctx, id, evt.Reason)
			c.forgetAutoReconnect(id)
		case EffectRelease:
			c.cleaner.ReleaseSession(ctx, id, evt.Reason)
		case EffectDiscard:
			c.discard(ctx, id, resumed, evt.describe())
		case EffectReconnect:
			c.autoReconnect(id)
		case EffectEmergency:
			c.emergencyCleanup(evt.describe())
		}
	}

	switch evt.Type {
	case EventDisconnected:
		entry.WithField("reason", evt.Reason).Warn("Session disconnected")
		c.notifier.Notify(id, NotifyDisconnected, map[string]interface{}{"reason": evt.Reason})
	case EventAuthFailure:
		entry.WithError(evt.Err).Error("Session authentication failed")
		c.notifier.Notify(id, NotifyFailed, map[string]interface{}{"error": evt.describe()})
	}
}

func (c *Controller) resolve(id string, evt Event, status Status, p *pending) {
	switch evt.Type {
	case EventQR:
		if !p.allowQR {
			p.fail(ErrPairingRequired)
			return
		}
		p.succeed(evt.QR, status)
		c.notifier.Notify(id, NotifyQR, map[string]interface{}{"qr": evt.QR})
	case EventReady:
		c.forgetAutoReconnect(id)
		p.succeed("", status)
		c.notifier.Notify(id, NotifyConnected, nil)
	}
}

// discard drops a session that never became usable. Credentials of a fresh
// pairing attempt are worthless and deleted; resumed ones are kept.
func (c *Controller) discard(ctx context.Context, id string, resumed bool, reason string) {
	if resumed {
		c.cleaner.ReleaseSession(ctx, id, reason)
		return
	}
	c.cleaner.CleanupSession(ctx, id, reason)
}

func (c *Controller) autoReconnect(id string) {
	if c.closed.Load() {
		return
	}
	if !c.store.Exists(id) {
		c.forgetAutoReconnect(id)
		return
	}

	c.mu.Lock()
	attempts := c.autoReconnects[id]
	if c.cfg.MaxAutoReconnect > 0 && attempts >= c.cfg.MaxAutoReconnect {
		c.mu.Unlock()
		log.Session(id, "auto-reconnect").
			WithField("attempts", attempts).
			Warn("Automatic reconnect limit reached, session must be reconnected manually")
		return
	}
	c.autoReconnects[id] = attempts + 1
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReconnectTimeout)
		defer cancel()

		entry := log.Session(id, "auto-reconnect").WithField("attempt", attempts+1)
		ok, err := c.Reconnect(ctx, id)
		switch {
		case err != nil:
			entry.WithError(err).Warn("Automatic reconnect failed")
		case !ok:
			entry.Info("Automatic reconnect not applicable")
		default:
			entry.Info("Session reconnected")
		}
	}()
}

func (c *Controller) forgetAutoReconnect(id string) {
	c.mu.Lock()
	delete(c.autoReconnects, id)
	c.mu.Unlock()
}

// EmergencyCleanup tears down every session after a process-wide failure of
// the client library. Concurrent triggers collapse into one pass.
func (c *Controller) EmergencyCleanup(reason string) int {
	return c.emergencyCleanup(reason)
}

func (c *Controller) emergencyCleanup(reason string) int {
	v, _, _ := c.emergency.Do("cleanup-all", func() (interface{}, error) {
		log.Session("*", "emergency").WithField("reason", reason).Error("Fatal client error, cleaning up all sessions")
		return c.cleaner.CleanupAll(context.Background(), "emergency: "+reason), nil
	})
	n, _ := v.(int)
	return n
}

func eventError(evt Event) error {
	switch evt.Type {
	case EventAuthFailure:
		if evt.Err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailure, evt.Err)
		}
		return ErrAuthFailure
	case EventDisconnected:
		return fmt.Errorf("%w: disconnected (%s)", ErrTransport, evt.Reason)
	}
	if evt.Err != nil {
		return evt.Err
	}
	return ErrTransport
}

type outcome struct {
	qr     string
	status Status
	err    error
}

// pending carries the first outcome of a start to the caller waiting on it.
type pending struct {
	allowQR bool
	once    sync.Once
	done    chan outcome
}

func newPending(allowQR bool) *pending {
	return &pending{
		allowQR: allowQR,
		done:    make(chan outcome, 1),
	}
}

func (p *pending) succeed(qr string, status Status) {
	p.once.Do(func() { p.done <- outcome{qr: qr, status: status} })
}

func (p *pending) fail(err error) {
	p.once.Do(func() { p.done <- outcome{err: err} })
}
