package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/ratelimit"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

func newTestDispatcher(limiter Limiter) (*Dispatcher, *fakeSessions, *fakeClient, *recordingPacer) {
	sessions := newFakeSessions()
	client := newFakeClient()
	sessions.add("s1", client, session.StatusConnected)
	pacer := &recordingPacer{}
	if limiter == nil {
		limiter = &fakeLimiter{}
	}
	return NewDispatcher(sessions, limiter, NewValidator(suffix, 4), pacer, testOptions), sessions, client, pacer
}

func numbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("62800%04d", i)
	}
	return out
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, 20, opts.BatchSize)
	assert.Equal(t, time.Second, opts.MessageDelay)
	assert.Equal(t, 5*time.Second, opts.BatchDelay)
	assert.Equal(t, 10*time.Second, opts.RecoveryDelay)

	opts = Options{MessageDelay: 2 * time.Second, RecoveryDelay: time.Second}.withDefaults()
	assert.Equal(t, 10*time.Second, opts.BatchDelay)
	assert.Equal(t, 20*time.Second, opts.RecoveryDelay)
}

func TestSendBulkSkipsInvalidRecipients(t *testing.T) {
	d, _, client, _ := newTestDispatcher(nil)
	client.invalid["6281200000002"+suffix] = true

	result := d.SendBulk(context.Background(), Job{
		SessionID:  "s1",
		Recipients: []string{"6281200000001", "6281200000002", "6281200000003"},
		Content:    session.Content{Text: "hello"},
	})

	assert.ElementsMatch(t, []string{"6281200000001", "6281200000003"}, result.Success)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"6281200000002"}, result.Invalid)
	assert.Equal(t, []string{"6281200000001" + suffix, "6281200000003" + suffix}, client.sentTo())
}

func TestSendBulkBatchesAndPacing(t *testing.T) {
	limiter := &fakeLimiter{}
	d, sessions, client, pacer := newTestDispatcher(limiter)

	result := d.SendBulk(context.Background(), Job{
		SessionID:  "s1",
		Recipients: numbers(25),
		Content:    session.Content{Text: "hello"},
	})

	assert.Len(t, result.Success, 25)
	assert.Equal(t, 25, client.checkCount())
	assert.Equal(t, 1, pacer.count(testOptions.BatchDelay))
	assert.Equal(t, 25, pacer.count(testOptions.MessageDelay))
	assert.Equal(t, 25, limiter.recordCount())
	assert.Equal(t, 3, sessions.touchCount("s1"))
}

func TestSendBulkAccountsForEveryRecipient(t *testing.T) {
	d, _, client, _ := newTestDispatcher(nil)
	recipients := numbers(57)
	for i, r := range recipients {
		switch i % 5 {
		case 1:
			client.invalid[r+suffix] = true
		case 2:
			client.checkErr[r+suffix] = errors.New("usync timeout")
		case 3:
			client.sendErr[r+suffix] = errors.New("server returned error 479")
		}
	}

	result := d.SendBulk(context.Background(), Job{SessionID: "s1", Recipients: recipients})

	assert.Equal(t, len(recipients), result.Total())
	var all []string
	all = append(all, result.Success...)
	all = append(all, result.Invalid...)
	for _, f := range result.Failed {
		all = append(all, f.Recipient)
		assert.Equal(t, "server returned error 479", f.Reason)
	}
	assert.ElementsMatch(t, recipients, all)
}

func TestSendBulkRateLimitTimeoutRetriesLater(t *testing.T) {
	limiter := &fakeLimiter{timeouts: map[int]bool{2: true}}
	d, _, client, pacer := newTestDispatcher(limiter)

	result := d.SendBulk(context.Background(), Job{
		SessionID:  "s1",
		Recipients: []string{"6281200000001", "6281200000002", "6281200000003"},
	})

	assert.Equal(t, []string{"6281200000001", "6281200000003"}, result.Success)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, Failure{Recipient: "6281200000002", Reason: ReasonRetryLater}, result.Failed[0])
	assert.Equal(t, 1, pacer.count(testOptions.RecoveryDelay))
	assert.Equal(t, 2, limiter.recordCount())
	assert.Equal(t, []string{"6281200000001" + suffix, "6281200000003" + suffix}, client.sentTo())
}

func TestSendBulkUnknownSession(t *testing.T) {
	d, _, client, _ := newTestDispatcher(nil)

	result := d.SendBulk(context.Background(), Job{SessionID: "missing", Recipients: numbers(3)})

	assert.Empty(t, result.Success)
	assert.Empty(t, result.Invalid)
	require.Len(t, result.Failed, 3)
	for _, f := range result.Failed {
		assert.Equal(t, session.ErrNotFound.Error(), f.Reason)
	}
	assert.Equal(t, 0, client.checkCount())
}

func TestSendBulkSessionGoneMidJob(t *testing.T) {
	d, sessions, client, _ := newTestDispatcher(nil)
	client.afterSend = func(n int) {
		if n == 2 {
			sessions.remove("s1")
		}
	}

	result := d.SendBulk(context.Background(), Job{SessionID: "s1", Recipients: numbers(25)})

	assert.Len(t, result.Success, 2)
	assert.Len(t, result.Failed, 23)
	assert.Equal(t, 25, result.Total())
}

func TestSendBulkReportsProgress(t *testing.T) {
	d, _, client, _ := newTestDispatcher(nil)
	client.invalid["62800"+"0001"+suffix] = true

	var seen []int
	d.SendBulk(context.Background(), Job{
		SessionID:  "s1",
		Recipients: numbers(4),
		Progress:   func(processed, total int) { seen = append(seen, processed) },
	})

	require.NotEmpty(t, seen)
	assert.Equal(t, 4, seen[len(seen)-1])
	assert.IsNonDecreasing(t, seen)
}

func TestSendBulkHonorsRealRateLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{
		Window:       100 * time.Millisecond,
		Max:          2,
		Granularity:  10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	d, _, client, _ := newTestDispatcher(limiter)

	start := time.Now()
	result := d.SendBulk(context.Background(), Job{SessionID: "s1", Recipients: numbers(5)})

	assert.Len(t, result.Success, 5)
	assert.Len(t, client.sentTo(), 5)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestSendOne(t *testing.T) {
	limiter := &fakeLimiter{}
	d, sessions, client, _ := newTestDispatcher(limiter)

	require.NoError(t, d.SendOne(context.Background(), "s1", "+628123", session.Content{Text: "hi"}))
	assert.Equal(t, []string{"628123" + suffix}, client.sentTo())
	assert.Equal(t, 1, limiter.recordCount())
	assert.Equal(t, 1, sessions.touchCount("s1"))

	limiter.full = true
	assert.ErrorIs(t, d.SendOne(context.Background(), "s1", "628123", session.Content{Text: "hi"}), ratelimit.ErrLimited)
	assert.Equal(t, 1, limiter.recordCount())

	assert.ErrorIs(t, d.SendOne(context.Background(), "missing", "628123", session.Content{}), session.ErrNotFound)
}

func TestSendOneRequiresConnectedSession(t *testing.T) {
	d, sessions, _, _ := newTestDispatcher(nil)
	sessions.add("pairing", newFakeClient(), session.StatusInitializing)

	err := d.SendOne(context.Background(), "pairing", "628123", session.Content{Text: "hi"})
	assert.ErrorIs(t, err, session.ErrNotReady)
}

func TestCheckNumbers(t *testing.T) {
	d, sessions, client, _ := newTestDispatcher(nil)
	client.invalid["6281200000002"+suffix] = true

	part, err := d.CheckNumbers(context.Background(), "s1", []string{"6281200000001", "6281200000002"})
	require.NoError(t, err)
	assert.Equal(t, []string{"6281200000001"}, part.Valid)
	assert.Equal(t, []string{"6281200000002"}, part.Invalid)
	assert.Equal(t, 1, sessions.touchCount("s1"))

	_, err = d.CheckNumbers(context.Background(), "missing", []string{"6281200000001"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSleepPacer(t *testing.T) {
	assert.NoError(t, SleepPacer{}.Pause(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepPacer{}.Pause(ctx, time.Hour), context.Canceled)
}
