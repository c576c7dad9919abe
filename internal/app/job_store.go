package app

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/ytgrab/internal/domain"
)

// jobEntry pairs a job record with its synchronization. The entry mutex
// guards the record; cancel tears down the job's context. Only the
// executing worker mutates the record after admission.
type jobEntry struct {
	mu     sync.Mutex
	job    domain.Job
	cancel context.CancelFunc
}

// update applies a mutation under the entry lock
func (e *jobEntry) update(fn func(*domain.Job)) {
	e.mu.Lock()
	fn(&e.job)
	e.mu.Unlock()
}

// snapshot returns a read-only copy of the record
func (e *jobEntry) snapshot() domain.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone()
}

// JobStore is the owned arena of live and recently finished jobs, keyed
// by job ID. It is injected into the manager so tests can instantiate
// isolated instances. Terminal jobs are retained for the configured
// window and then swept.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*jobEntry
	retention time.Duration
}

// NewJobStore creates an empty store with the given retention window
func NewJobStore(retention time.Duration) *JobStore {
	return &JobStore{
		jobs:      make(map[string]*jobEntry),
		retention: retention,
	}
}

// Put registers a new job together with its cancellation hook
func (s *JobStore) Put(job *domain.Job, cancel context.CancelFunc) {
	s.mu.Lock()
	s.jobs[job.ID] = &jobEntry{job: *job, cancel: cancel}
	s.mu.Unlock()
}

// get returns the live entry for a job ID
func (s *JobStore) get(id string) (*jobEntry, bool) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	return e, ok
}

// Snapshot returns a read-only copy of a job record
func (s *JobStore) Snapshot(id string) (domain.Job, error) {
	e, ok := s.get(id)
	if !ok {
		return domain.Job{}, domain.Errorf(domain.ErrNotFound, "job %s not found", id)
	}
	return e.snapshot(), nil
}

// Len returns the number of retained jobs
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep drops terminal jobs older than the retention window and returns
// how many were removed
func (s *JobStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.jobs {
		snap := e.snapshot()
		if !snap.Terminal() || snap.CompletedAt == nil {
			continue
		}
		if now.Sub(*snap.CompletedAt) > s.retention {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
