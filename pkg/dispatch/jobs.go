package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("bulk job not found")

const defaultJobTTL = time.Hour

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
)

type JobState struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Status      JobStatus  `json:"status"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Tracker runs bulk jobs in the background and keeps their state in memory
// until they are older than the ttl.
type Tracker struct {
	dispatcher *Dispatcher
	ttl        time.Duration
	onDone     func(JobState)

	mu    sync.RWMutex
	jobs  map[string]*JobState
	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

func NewTracker(dispatcher *Dispatcher, ttl time.Duration, onDone func(JobState)) *Tracker {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &Tracker{
		dispatcher: dispatcher,
		ttl:        ttl,
		onDone:     onDone,
		jobs:       make(map[string]*JobState),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Start queues job and returns its initial state. The job runs detached from
// any request context.
func (t *Tracker) Start(job Job) JobState {
	state := &JobState{
		ID:        t.newID(),
		SessionID: job.SessionID,
		Status:    JobPending,
		Total:     len(job.Recipients),
		CreatedAt: t.now(),
	}

	t.mu.Lock()
	t.jobs[state.ID] = state
	snapshot := *state
	t.mu.Unlock()

	progress := job.Progress
	job.Progress = func(processed, total int) {
		t.mu.Lock()
		state.Status = JobRunning
		state.Processed = processed
		t.mu.Unlock()
		if progress != nil {
			progress(processed, total)
		}
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		result := t.dispatcher.SendBulk(context.Background(), job)

		t.mu.Lock()
		done := t.now()
		state.Status = JobCompleted
		state.Processed = state.Total
		state.Result = &result
		state.CompletedAt = &done
		final := *state
		t.mu.Unlock()

		if t.onDone != nil {
			t.onDone(final)
		}
	}()

	return snapshot
}

func (t *Tracker) Get(id string) (JobState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.jobs[id]
	if !ok {
		return JobState{}, ErrJobNotFound
	}
	return *state, nil
}

// Prune drops completed jobs older than the ttl and returns how many went.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	pruned := 0
	for id, state := range t.jobs {
		if state.CompletedAt != nil && now.Sub(*state.CompletedAt) >= t.ttl {
			delete(t.jobs, id)
			pruned++
		}
	}
	return pruned
}

// Wait blocks until every started job finished or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
