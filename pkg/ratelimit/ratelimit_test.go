package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(max int) (*Limiter, *clock) {
	l := New(Config{Window: time.Minute, Max: max, Granularity: time.Second})
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l.now = c.now
	return l, c
}

func TestDefaults(t *testing.T) {
	l := New(Config{})
	cfg := l.Config()
	assert.Equal(t, 60*time.Second, cfg.Window)
	assert.Equal(t, 30, cfg.Max)
	assert.Equal(t, time.Second, cfg.Granularity)
	assert.Equal(t, time.Second, cfg.PollInterval)
}

func TestCheckLimitAndRecord(t *testing.T) {
	l, _ := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		require.True(t, l.CheckLimit("a"))
		l.Record("a")
	}
	assert.False(t, l.CheckLimit("a"))
	assert.Equal(t, 3, l.Count("a"))
	assert.Equal(t, 0, l.Remaining("a"))

	assert.True(t, l.CheckLimit("b"))
	assert.Equal(t, 3, l.Remaining("b"))
}

func TestBucketExpiresAfterItsLatestSend(t *testing.T) {
	l, c := newTestLimiter(2)

	l.Record("a")
	c.advance(900 * time.Millisecond)
	l.Record("a")

	c.advance(59200 * time.Millisecond)
	assert.False(t, l.CheckLimit("a"))

	c.advance(900 * time.Millisecond)
	assert.True(t, l.CheckLimit("a"))
	assert.Equal(t, 0, l.Count("a"))
}

func TestSendsInOneSubWindowShareABucket(t *testing.T) {
	l, c := newTestLimiter(10)

	l.Record("a")
	c.advance(500 * time.Millisecond)
	l.Record("a")
	c.advance(600 * time.Millisecond)
	l.Record("a")

	l.mu.Lock()
	assert.Len(t, l.buckets["a"], 2)
	l.mu.Unlock()
	assert.Equal(t, 3, l.Count("a"))
}

func TestBucketsExpireAfterWindow(t *testing.T) {
	l, c := newTestLimiter(2)

	l.Record("a")
	c.advance(10 * time.Second)
	l.Record("a")
	assert.False(t, l.CheckLimit("a"))

	c.advance(49 * time.Second)
	assert.False(t, l.CheckLimit("a"), "first send is still inside the window")

	c.advance(time.Second)
	assert.True(t, l.CheckLimit("a"))
	assert.Equal(t, 1, l.Count("a"))

	c.advance(time.Minute)
	assert.Equal(t, 0, l.Count("a"))
}

func TestNoMoreThanMaxInAnyRollingWindow(t *testing.T) {
	const max = 5
	l, c := newTestLimiter(max)

	var sent []time.Time
	for i := 0; i < 200; i++ {
		if l.CheckLimit("a") {
			l.Record("a")
			sent = append(sent, c.now())
		}
		c.advance(700 * time.Millisecond)
	}
	require.Greater(t, len(sent), max)

	for i := range sent {
		inWindow := 0
		for j := i; j < len(sent) && sent[j].Sub(sent[i]) < time.Minute; j++ {
			inWindow++
		}
		assert.LessOrEqual(t, inWindow, max, "window starting at send %d", i)
	}
}

func TestForgetAndSweep(t *testing.T) {
	l, c := newTestLimiter(2)
	l.Record("a")
	l.Record("b")

	l.Forget("a")
	assert.Equal(t, 0, l.Count("a"))
	assert.Equal(t, 1, l.Sweep())

	c.advance(2 * time.Minute)
	assert.Equal(t, 0, l.Sweep())
}

func TestAwaitSlotImmediate(t *testing.T) {
	l, _ := newTestLimiter(1)
	assert.NoError(t, l.AwaitSlot(context.Background(), "a"))
}

func TestAwaitSlotTimesOut(t *testing.T) {
	l, _ := newTestLimiter(1)
	l.cfg.Window = 80 * time.Millisecond
	l.cfg.PollInterval = 10 * time.Millisecond
	l.Record("a")

	start := time.Now()
	err := l.AwaitSlot(context.Background(), "a")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestAwaitSlotWaitsForExpiry(t *testing.T) {
	l := New(Config{Window: 200 * time.Millisecond, Max: 1, Granularity: 10 * time.Millisecond, PollInterval: 5 * time.Millisecond})
	l.Record("a")

	start := time.Now()
	require.NoError(t, l.AwaitSlot(context.Background(), "a"))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestAwaitSlotHonorsContext(t *testing.T) {
	l, _ := newTestLimiter(1)
	l.Record("a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.AwaitSlot(ctx, "a"), context.DeadlineExceeded)
}
