package session

import (
	"sync"

	"videoserver/internal/model"
)

// Store keeps jobs (including finished video/poster bytes) in memory for the
// lifetime of the process. The sqlite repository keeps the durable metadata;
// the bytes themselves are only ever served from here.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*model.Job)}
}

func (s *Store) Put(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns a copy of the job so callers never see mid-pipeline mutation.
func (s *Store) Get(id string) (*model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

func (s *Store) update(id string, fn func(*model.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}
