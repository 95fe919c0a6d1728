// Package memory keeps job state in process. It is the default when no
// database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

type JobRepository struct {
	mu   sync.RWMutex
	jobs map[domain.JobID]domain.Job
	now  func() time.Time
}

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[domain.JobID]domain.Job), now: time.Now}
}

func (r *JobRepository) Save(_ context.Context, j *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = *j
	return nil
}

func (r *JobRepository) UpdateProgress(_ context.Context, id domain.JobID, status domain.Status, processed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.Status = status
	j.ProcessedBlocks = processed
	j.UpdatedAt = r.now()
	r.jobs[id] = j
	return nil
}

// Get returns a copy; callers may mutate it freely.
func (r *JobRepository) Get(_ context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &j, nil
}
