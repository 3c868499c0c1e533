package scout

import (
	"sync"
	"time"
)

// Store is a key-addressed job status store. The orchestrator is the only
// writer for a given job; readers include the HTTP polling layer, so
// implementations must be safe for concurrent use.
type Store interface {
	Get(jobID string) (JobStatus, bool)
	Put(status JobStatus)
	Delete(jobID string)
	// Sweep removes jobs started more than maxAge ago and returns how
	// many were removed.
	Sweep(maxAge time.Duration) int
}

// MemoryStore keeps job statuses in memory. Statuses are stored by value,
// so a Get always returns a consistent snapshot.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]JobStatus
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]JobStatus)}
}

// Get returns the status snapshot for a job.
func (s *MemoryStore) Get(jobID string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.jobs[jobID]
	return status, ok
}

// Put stores a status snapshot.
func (s *MemoryStore) Put(status JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[status.JobID] = status
}

// Delete removes a job.
func (s *MemoryStore) Delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// Sweep removes jobs older than maxAge, regardless of state. Callers are
// expected to run it periodically; the asynchronous discovery path has no
// built-in timeout, so stale jobs are reaped here.
func (s *MemoryStore) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, status := range s.jobs {
		if status.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
