package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/jupark12/go-content-queue/models"
)

// MemoryStore keeps jobs in process memory for the life of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	jobsByID map[string]*models.Job
	order    []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobsByID: make(map[string]*models.Job),
		order:    make([]string, 0),
	}
}

// Create adds a new job
func (s *MemoryStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobsByID[job.ID]; exists {
		return fmt.Errorf("create job %s: %w", job.ID, ErrDuplicateJob)
	}

	s.jobsByID[job.ID] = job.Clone()
	s.order = append(s.order, job.ID)
	return nil
}

// Get retrieves a job by ID
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobsByID[id]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return job.Clone(), nil
}

// List returns jobs in creation order, optionally filtered by status
func (s *MemoryStore) List(_ context.Context, status models.JobStatus) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(s.order))
	for _, id := range s.order {
		job := s.jobsByID[id]
		if status != "" && job.Status != status {
			continue
		}
		jobs = append(jobs, job.Clone())
	}
	return jobs, nil
}

// Update runs fn against a copy and swaps it in only if fn succeeds
func (s *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.jobsByID[id]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	s.jobsByID[id] = next
	return next.Clone(), nil
}
