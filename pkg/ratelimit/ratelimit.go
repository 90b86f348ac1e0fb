package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned by AwaitSlot when no slot freed within one window.
	// Callers should retry later.
	ErrTimeout = errors.New("rate limit wait timed out, retry later")
	ErrLimited = errors.New("rate limit exceeded")
)

const (
	defaultWindow       = 60 * time.Second
	defaultMax          = 30
	defaultGranularity  = time.Second
	defaultPollInterval = time.Second
)

type Config struct {
	Window time.Duration
	Max    int
	// Granularity is the width of one bucket. Sends within the same
	// sub-window share a bucket.
	Granularity  time.Duration
	PollInterval time.Duration
}

type bucket struct {
	start time.Time
	last  time.Time
	count int
}

// Limiter is a per-session sliding window send counter. A bucket expires
// one Window after its latest send, so every recorded send occupies a slot
// for at least one full window.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string][]bucket
	now     func() time.Time
}

func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Max <= 0 {
		cfg.Max = defaultMax
	}
	if cfg.Granularity <= 0 || cfg.Granularity > cfg.Window {
		cfg.Granularity = min(defaultGranularity, cfg.Window)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = min(defaultPollInterval, cfg.Window)
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string][]bucket),
		now:     time.Now,
	}
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// CheckLimit prunes expired buckets of id and reports whether another send
// fits in the current window.
func (l *Limiter) CheckLimit(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(id, l.now()) < l.cfg.Max
}

// Record counts one issued send for id. Call it only after the send went out.
func (l *Limiter) Record(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(id, now)

	bs := l.buckets[id]
	if n := len(bs); n > 0 && now.Sub(bs[n-1].start) < l.cfg.Granularity {
		bs[n-1].count++
		bs[n-1].last = now
		return
	}
	l.buckets[id] = append(bs, bucket{start: now, last: now, count: 1})
}

// Count returns the sends of id still inside the window.
func (l *Limiter) Count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(id, l.now())
}

func (l *Limiter) Remaining(id string) int {
	return max(l.cfg.Max-l.Count(id), 0)
}

// AwaitSlot polls CheckLimit every PollInterval until a slot is free, for at
// most one window. It fails with ErrTimeout when the window passes first.
func (l *Limiter) AwaitSlot(ctx context.Context, id string) error {
	if l.CheckLimit(id) {
		return nil
	}

	deadline := time.NewTimer(l.cfg.Window)
	defer deadline.Stop()
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if l.CheckLimit(id) {
				return nil
			}
			return ErrTimeout
		case <-ticker.C:
			if l.CheckLimit(id) {
				return nil
			}
		}
	}
}

// Forget drops every bucket of id.
func (l *Limiter) Forget(id string) {
	l.mu.Lock()
	delete(l.buckets, id)
	l.mu.Unlock()
}

// Sweep prunes every id and drops those left without buckets. It returns the
// number of ids still tracked.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id := range l.buckets {
		l.pruneLocked(id, now)
	}
	return len(l.buckets)
}

func (l *Limiter) countLocked(id string, now time.Time) int {
	l.pruneLocked(id, now)
	total := 0
	for _, b := range l.buckets[id] {
		total += b.count
	}
	return total
}

func (l *Limiter) pruneLocked(id string, now time.Time) {
	bs, ok := l.buckets[id]
	if !ok {
		return
	}

	i := 0
	for i < len(bs) && now.Sub(bs[i].last) >= l.cfg.Window {
		i++
	}
	if i == len(bs) {
		delete(l.buckets, id)
		return
	}
	if i > 0 {
		l.buckets[id] = append(bs[:0], bs[i:]...)
	}
}
