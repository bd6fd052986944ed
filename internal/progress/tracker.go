// Package progress tracks import jobs for any number of concurrent pollers.
//
// A job is written by the single goroutine running it and read through
// snapshots, which are copies taken under the tracker's lock.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
)

const (
	DefaultRetention       = time.Hour
	DefaultMaxRetained     = 200
	DefaultCleanupInterval = 10 * time.Minute
	subscriberBuffer       = 10
)

// Options configure retention. Zero values select the defaults.
type Options struct {
	Retention       time.Duration
	MaxRetained     int
	CleanupInterval time.Duration
	Now             func() time.Time
}

// Tracker is the registry of import jobs.
type Tracker struct {
	mu        sync.RWMutex
	jobs      map[string]*models.SyncJob
	listeners map[string][]chan models.SyncJob
	opts      Options
}

// NewTracker creates an empty registry.
func NewTracker(opts Options) *Tracker {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.MaxRetained <= 0 {
		opts.MaxRetained = DefaultMaxRetained
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		jobs:      make(map[string]*models.SyncJob),
		listeners: make(map[string][]chan models.SyncJob),
		opts:      opts,
	}
}

// StartCleanup starts a background goroutine that removes expired finished jobs.
// Stops when ctx is cancelled.
func (t *Tracker) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Cleanup()
			}
		}
	}()
}

// Cleanup evicts finished jobs older than the retention window and returns how many were removed.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictExpired()
}

// CreateJob registers a pending job for total records and returns its id.
//
// Creating a job also enforces the retention bounds on finished jobs.
func (t *Tracker) CreateJob(total int, playlist string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictExpired()
	t.evictOverflow()

	job := &models.SyncJob{
		ID:        shared.GenerateID(),
		State:     models.JobPending,
		Playlist:  playlist,
		Total:     max(total, 0),
		CreatedAt: t.opts.Now(),
	}
	t.jobs[job.ID] = job
	return job.ID
}

// Start moves a pending job to running.
func (t *Tracker) Start(id string) error {
	return t.mutate(id, func(job *models.SyncJob) error {
		if job.State != models.JobPending {
			return fmt.Errorf("%w: cannot start job in state %s", shared.ErrInvalidArgument, job.State)
		}
		t.markRunning(job)
		return nil
	})
}

// Update adds the deltas to the job's counters. Processed never exceeds Total.
func (t *Tracker) Update(id string, processed, matched, unmatched int) error {
	if processed < 0 || matched < 0 || unmatched < 0 {
		return fmt.Errorf("%w: progress deltas must not be negative", shared.ErrInvalidArgument)
	}
	return t.mutate(id, func(job *models.SyncJob) error {
		if job.State == models.JobPending {
			t.markRunning(job)
		}
		job.Processed = min(job.Processed+processed, job.Total)
		job.Matched += matched
		job.Unmatched += unmatched
		return nil
	})
}

// Complete marks the job finished. A non-empty errMsg fails it.
//
// A job finishes exactly once; later calls return [shared.ErrJobFinalized].
func (t *Tracker) Complete(id, errMsg string) error {
	return t.mutate(id, func(job *models.SyncJob) error {
		now := t.opts.Now()
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		job.CompletedAt = &now
		if errMsg != "" {
			job.State = models.JobFailed
			job.Error = errMsg
			return nil
		}
		job.State = models.JobCompleted
		job.Processed = job.Total
		return nil
	})
}

// AttachReport records the report token for a job.
func (t *Tracker) AttachReport(id, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	job.ReportToken = token
	t.notify(job)
	return nil
}

// Snapshot returns a copy of the job, or [shared.ErrJobNotFound] for unknown or evicted ids.
func (t *Tracker) Snapshot(id string) (models.SyncJob, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return models.SyncJob{}, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return copyJob(job), nil
}

// Jobs returns snapshots of every tracked job, newest first.
func (t *Tracker) Jobs() []models.SyncJob {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs := make([]models.SyncJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, copyJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Subscribe returns a channel receiving a snapshot after every change to the job.
//
// Slow subscribers miss intermediate snapshots rather than block the job.
func (t *Tracker) Subscribe(id string) <-chan models.SyncJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan models.SyncJob, subscriberBuffer)
	t.listeners[id] = append(t.listeners[id], ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by [Tracker.Subscribe].
func (t *Tracker) Unsubscribe(id string, ch <-chan models.SyncJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	listeners := t.listeners[id]
	for i, listener := range listeners {
		if listener == ch {
			t.listeners[id] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
	if len(t.listeners[id]) == 0 {
		delete(t.listeners, id)
	}
}

// Sink adapts the tracker to the per-record callback used by the sync engine.
func (t *Tracker) Sink(id string) *Sink {
	return &Sink{tracker: t, id: id}
}

// Sink forwards counter deltas for one job.
type Sink struct {
	tracker *Tracker
	id      string
}

// Update applies one record's outcome to the job.
func (s *Sink) Update(processed, matched, unmatched int) {
	_ = s.tracker.Update(s.id, processed, matched, unmatched)
}

func (t *Tracker) mutate(id string, fn func(*models.SyncJob) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", shared.ErrJobFinalized, id, job.State)
	}
	if err := fn(job); err != nil {
		return err
	}
	t.notify(job)
	return nil
}

func (t *Tracker) markRunning(job *models.SyncJob) {
	now := t.opts.Now()
	job.State = models.JobRunning
	job.StartedAt = &now
}

// notify sends a snapshot to every listener without blocking. Callers hold t.mu.
func (t *Tracker) notify(job *models.SyncJob) {
	listeners := t.listeners[job.ID]
	if len(listeners) == 0 {
		return
	}
	snap := copyJob(job)
	for _, ch := range listeners {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (t *Tracker) evictExpired() int {
	cutoff := t.opts.Now().Add(-t.opts.Retention)
	removed := 0
	for id, job := range t.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			t.remove(id)
			removed++
		}
	}
	return removed
}

// evictOverflow drops the oldest finished jobs beyond MaxRetained.
func (t *Tracker) evictOverflow() {
	var finished []*models.SyncJob
	for _, job := range t.jobs {
		if job.State.Terminal() {
			finished = append(finished, job)
		}
	}
	excess := len(finished) - t.opts.MaxRetained
	if excess <= 0 {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CompletedAt.Before(*finished[j].CompletedAt)
	})
	for _, job := range finished[:excess] {
		t.remove(job.ID)
	}
}

func (t *Tracker) remove(id string) {
	delete(t.jobs, id)
	for _, ch := range t.listeners[id] {
		close(ch)
	}
	delete(t.listeners, id)
}

func copyJob(job *models.SyncJob) models.SyncJob {
	c := *job
	if job.StartedAt != nil {
		started := *job.StartedAt
		c.StartedAt = &started
	}
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		c.CompletedAt = &completed
	}
	return c
}
