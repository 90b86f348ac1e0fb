package session

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

const defaultCleanupTimeout = 10 * time.Second

// Forgetter drops per-session bookkeeping kept outside the registry.
type Forgetter interface {
	Forget(id string)
}

type CleanerConfig struct {
	// Timeout bounds a single Destroy call.
	Timeout  time.Duration
	Limiter  Forgetter
	Notifier Notifier
}

// Cleaner tears down sessions. Every path is idempotent: a second call for
// the same id finds no entry, or an entry already claimed, and does nothing.
type Cleaner struct {
	registry *Registry
	store    *Store
	timeout  time.Duration
	limiter  Forgetter
	notifier Notifier
}

func NewCleaner(registry *Registry, store *Store, cfg CleanerConfig) *Cleaner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCleanupTimeout
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	return &Cleaner{
		registry: registry,
		store:    store,
		timeout:  cfg.Timeout,
		limiter:  cfg.Limiter,
		notifier: cfg.Notifier,
	}
}

// CleanupSession destroys the client, deletes the persisted directory and
// drops the registry entry.
func (c *Cleaner) CleanupSession(ctx context.Context, id string, reason string) bool {
	return c.teardown(ctx, id, reason, true)
}

// ReleaseSession destroys the client and drops the registry entry but keeps
// persisted credentials so the session can be reconnected later.
func (c *Cleaner) ReleaseSession(ctx context.Context, id string, reason string) bool {
	return c.teardown(ctx, id, reason, false)
}

// CleanupAll runs CleanupSession for every registered id concurrently and
// waits for all of them.
func (c *Cleaner) CleanupAll(ctx context.Context, reason string) int {
	return c.fanOut(ctx, reason, true)
}

// ReleaseAll is the shutdown variant of CleanupAll that keeps persisted data.
func (c *Cleaner) ReleaseAll(ctx context.Context, reason string) int {
	return c.fanOut(ctx, reason, false)
}

func (c *Cleaner) fanOut(ctx context.Context, reason string, purge bool) int {
	ids := c.registry.IDs()
	if len(ids) == 0 {
		return 0
	}

	log.Session("*", "cleanup-all").
		WithField("reason", reason).
		WithField("sessions", len(ids)).
		WithField("purge", purge).
		Warn("Cleaning up all sessions")

	results := make([]bool, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = c.teardown(ctx, id, reason, purge)
			return nil
		})
	}
	_ = g.Wait()

	cleaned := 0
	for _, ok := range results {
		if ok {
			cleaned++
		}
	}
	return cleaned
}

func (c *Cleaner) teardown(ctx context.Context, id string, reason string, purge bool) bool {
	sess, ok := c.registry.claim(id)
	if !ok {
		return false
	}

	entry := log.Session(id, "cleanup").WithField("reason", reason).WithField("purge", purge)

	destroyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if sess.client != nil {
		if err := sess.client.Destroy(destroyCtx); err != nil {
			entry.WithError(err).Warn("Failed to destroy session client")
		}
	}

	if purge {
		if err := c.store.Remove(id); err != nil {
			entry.WithError(err).Warn("Failed to remove persisted session")
		}
		if c.limiter != nil {
			c.limiter.Forget(id)
		}
	}

	c.registry.deleteIf(id, sess.client)
	entry.Info("Session cleaned up")

	c.notifier.Notify(id, NotifyCleaned, map[string]interface{}{
		"reason": reason,
		"purged": purge,
	})
	return true
}
