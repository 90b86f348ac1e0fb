package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/ratelimit"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

// ReasonRetryLater is recorded for recipients skipped because no rate limit
// slot freed in time.
const ReasonRetryLater = "rate limit exceeded, retry later"

const (
	defaultBatchSize    = 20
	defaultMessageDelay = time.Second
)

// Sessions is the registry view the dispatcher works against.
type Sessions interface {
	Client(id string) (session.Client, session.Status, error)
	Touch(id string) error
}

type Limiter interface {
	CheckLimit(id string) bool
	Record(id string)
	AwaitSlot(ctx context.Context, id string) error
}

// Pacer waits between sends.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// SleepPacer pauses on the wall clock.
type SleepPacer struct{}

func (SleepPacer) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Options struct {
	BatchSize    int
	MessageDelay time.Duration
	// BatchDelay defaults to five message delays.
	BatchDelay time.Duration
	// RecoveryDelay follows a rate limit timeout and defaults to two batch delays.
	RecoveryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MessageDelay < 0 {
		o.MessageDelay = 0
	} else if o.MessageDelay == 0 {
		o.MessageDelay = defaultMessageDelay
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = 5 * o.MessageDelay
	}
	if o.RecoveryDelay <= o.BatchDelay {
		o.RecoveryDelay = 2 * o.BatchDelay
	}
	return o
}

type Job struct {
	SessionID  string
	Recipients []string
	Content    session.Content
	// Progress, when set, is called after every recipient is settled.
	Progress func(processed, total int)
}

type Failure struct {
	Recipient string `json:"number"`
	Reason    string `json:"error"`
}

type Result struct {
	Success []string  `json:"success"`
	Failed  []Failure `json:"failed"`
	Invalid []string  `json:"invalid"`
}

func newResult() Result {
	return Result{Success: []string{}, Failed: []Failure{}, Invalid: []string{}}
}

// Total is the number of recipients accounted for.
func (r Result) Total() int {
	return len(r.Success) + len(r.Failed) + len(r.Invalid)
}

type Dispatcher struct {
	sessions  Sessions
	limiter   Limiter
	validator *Validator
	pacer     Pacer
	opts      Options
}

func NewDispatcher(sessions Sessions, limiter Limiter, validator *Validator, pacer Pacer, opts Options) *Dispatcher {
	if pacer == nil {
		pacer = SleepPacer{}
	}
	return &Dispatcher{
		sessions:  sessions,
		limiter:   limiter,
		validator: validator,
		pacer:     pacer,
		opts:      opts.withDefaults(),
	}
}

func (d *Dispatcher) Options() Options {
	return d.opts
}

func (d *Dispatcher) Validator() *Validator {
	return d.validator
}

// SendBulk delivers one content to every recipient in batches. It never
// stops early: every recipient ends up in exactly one of the result lists.
func (d *Dispatcher) SendBulk(ctx context.Context, job Job) Result {
	result := newResult()
	entry := log.Session(job.SessionID, "bulk").WithField("recipients", len(job.Recipients))
	entry.Info("Bulk dispatch started")

	total := len(job.Recipients)
	processed := 0
	settle := func(n int) {
		processed += n
		if job.Progress != nil {
			job.Progress(processed, total)
		}
	}

	batches := chunk(job.Recipients, d.opts.BatchSize)
	for i, batch := range batches {
		_ = d.sessions.Touch(job.SessionID)

		client, err := d.connected(job.SessionID)
		if err != nil {
			for _, r := range batch {
				result.Failed = append(result.Failed, Failure{Recipient: r, Reason: err.Error()})
			}
			settle(len(batch))
		} else {
			part := d.validator.CheckMany(ctx, client, batch)
			result.Invalid = append(result.Invalid, part.Invalid...)
			settle(len(part.Invalid))

			for _, r := range part.Valid {
				err := d.deliver(ctx, job.SessionID, r, job.Content, true)
				switch {
				case err == nil:
					result.Success = append(result.Success, r)
					_ = d.pacer.Pause(ctx, d.opts.MessageDelay)
				case errors.Is(err, ratelimit.ErrTimeout):
					result.Failed = append(result.Failed, Failure{Recipient: r, Reason: ReasonRetryLater})
					entry.WithField("recipient", r).Warn("Rate limit wait timed out, pausing dispatch")
					_ = d.pacer.Pause(ctx, d.opts.RecoveryDelay)
				default:
					result.Failed = append(result.Failed, Failure{Recipient: r, Reason: err.Error()})
					entry.WithField("recipient", r).WithError(err).Warn("Failed to send message")
					_ = d.pacer.Pause(ctx, d.opts.MessageDelay)
				}
				settle(1)
			}
		}

		if i < len(batches)-1 {
			_ = d.pacer.Pause(ctx, d.opts.BatchDelay)
		}
	}
	_ = d.sessions.Touch(job.SessionID)

	entry.WithField("success", len(result.Success)).
		WithField("failed", len(result.Failed)).
		WithField("invalid", len(result.Invalid)).
		Info("Bulk dispatch finished")
	return result
}

// SendOne sends content to a single recipient without waiting for a rate
// limit slot. It fails with ratelimit.ErrLimited when the window is full.
func (d *Dispatcher) SendOne(ctx context.Context, sessionID string, recipient string, content session.Content) error {
	if err := d.deliver(ctx, sessionID, recipient, content, false); err != nil {
		return err
	}
	_ = d.sessions.Touch(sessionID)
	return nil
}

// CheckNumbers partitions recipients by registration on the network.
func (d *Dispatcher) CheckNumbers(ctx context.Context, sessionID string, recipients []string) (Partition, error) {
	client, err := d.connected(sessionID)
	if err != nil {
		return Partition{}, err
	}
	part := d.validator.CheckMany(ctx, client, recipients)
	_ = d.sessions.Touch(sessionID)
	return part, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sessionID string, recipient string, content session.Content, wait bool) error {
	client, err := d.connected(sessionID)
	if err != nil {
		return err
	}

	if wait {
		if err := d.limiter.AwaitSlot(ctx, sessionID); err != nil {
			return err
		}
	} else if !d.limiter.CheckLimit(sessionID) {
		return ratelimit.ErrLimited
	}

	if err := client.SendMessage(ctx, d.validator.Format(recipient), content); err != nil {
		return err
	}
	d.limiter.Record(sessionID)
	return nil
}

func (d *Dispatcher) connected(sessionID string) (session.Client, error) {
	client, status, err := d.sessions.Client(sessionID)
	if err != nil {
		return nil, err
	}
	if status != session.StatusConnected || client == nil {
		return nil, session.ErrNotReady
	}
	return client, nil
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
