package job

import (
	"fmt"
	"sync"
	"time"
)

type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string // creation order
	current string
}

func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*Job),
		order: make([]string, 0),
	}
}

// Add stores a new job and makes it the current one.
func (s *Store) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	s.order = append(s.order, j.ID)
	s.current = j.ID
	return nil
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j.Clone(), nil
}

func (s *Store) Current() (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return nil, ErrNotFound
	}
	return s.jobs[s.current].Clone(), nil
}

func (s *Store) ApplyEvent(ev Event) (*Job, error) {
	return s.update(ev.JobID, func(j *Job, now time.Time) error {
		return j.applyEvent(ev, now)
	})
}

func (s *Store) Complete(id string, res Result) (*Job, error) {
	return s.update(id, func(j *Job, now time.Time) error {
		return j.complete(res, now)
	})
}

func (s *Store) Fail(id string, reason FailureReason, msg string) (*Job, error) {
	return s.update(id, func(j *Job, now time.Time) error {
		return j.fail(reason, msg, now)
	})
}

// Cancel fails the job as cancelled by the user and clears the current
// pointer if it referenced this job. History is kept.
func (s *Store) Cancel(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.mutate(id, func(j *Job, now time.Time) error {
		return j.cancel(now)
	})
	if err != nil {
		return nil, err
	}
	if s.current == id {
		s.current = ""
	}
	return j, nil
}

func (s *Store) update(id string, fn func(j *Job, now time.Time) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(id, fn)
}

// mutate applies fn to a copy and swaps it in only on success. Callers hold mu.
func (s *Store) mutate(id string, fn func(j *Job, now time.Time) error) (*Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := j.Clone()
	if err := fn(next, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(limit, offset int, status string) ([]*Job, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*Job
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if status == "" || string(j.Status) == status {
			filtered = append(filtered, j.Clone())
		}
	}

	return paginate(filtered, limit, offset)
}

// ListCompleted returns completed jobs in creation order.
func (s *Store) ListCompleted() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completed := make([]*Job, 0)
	for _, id := range s.order {
		if j := s.jobs[id]; j.Status == StatusCompleted {
			completed = append(completed, j.Clone())
		}
	}
	return completed
}

func (s *Store) Stats() (pending, processing, completed, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		switch j.Status {
		case StatusPending:
			pending++
		case StatusProcessing:
			processing++
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return
}

func paginate(jobs []*Job, limit, offset int) ([]*Job, int) {
	total := len(jobs)
	offset = max(offset, 0)
	if offset >= total {
		return []*Job{}, total
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	return jobs[offset:end], total
}
