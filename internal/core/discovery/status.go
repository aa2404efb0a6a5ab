package discovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/markdave123-py/Discovera/internal/models"
)

// MemoryJobStore is the in-process job registry. Update applies mutators
// under one mutex, so concurrent segment completions serialize and no
// counter update is lost. Get returns a copy, so polling never blocks on
// pipeline progress and callers cannot mutate shared state.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.ProcessingJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*models.ProcessingJob)}
}

// Create registers the job and returns its ID, generating one if absent.
func (s *MemoryJobStore) Create(job *models.ProcessingJob) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	stored := *job
	stored.Errors = append([]string(nil), job.Errors...)
	s.jobs[job.ID] = &stored
	return job.ID
}

// Update applies the mutator to the stored job under the store's lock.
func (s *MemoryJobStore) Update(id string, mutate func(*models.ProcessingJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	mutate(job)
	return nil
}

// Get returns a snapshot of the job, or false if unknown.
func (s *MemoryJobStore) Get(id string) (*models.ProcessingJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	snap := *job
	snap.Errors = append([]string(nil), job.Errors...)
	return &snap, true
}
