package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DelxAbde/panel-pal-translate/internal/db"
)

const SystemNamespace = "panelpal/"

const (
	recordPrefix = "jobs/"
	imagePrefix  = "images/"
	resultPrefix = "results/"
)

// InterruptedMessage is the error given to jobs whose run was lost to a restart.
const InterruptedMessage = "Translation was interrupted. Please try again."

// PersistentStore keeps job records and their image blobs in badger. Records
// are JSON under jobs/<id>; images and results live under their own keys so
// listing never loads them.
type PersistentStore struct {
	dbStore *db.Store

	mu      sync.RWMutex
	current string
}

func NewPersistentStore(dbStore *db.Store) *PersistentStore {
	return &PersistentStore{dbStore: dbStore}
}

func (s *PersistentStore) Add(j *Job) error {
	if _, err := s.dbStore.Get(SystemNamespace, recordPrefix+j.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicate, j.ID)
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	entries := map[string][]byte{recordPrefix + j.ID: data}
	if len(j.ImageData) > 0 {
		entries[imagePrefix+j.ID] = j.ImageData
	}
	if err := s.dbStore.SetAll(SystemNamespace, entries); err != nil {
		return fmt.Errorf("store job: %w", err)
	}

	s.mu.Lock()
	s.current = j.ID
	s.mu.Unlock()
	return nil
}

func (s *PersistentStore) Get(id string) (*Job, error) {
	j, err := s.getRecord(id)
	if err != nil {
		return nil, err
	}

	if img, err := s.dbStore.Get(SystemNamespace, imagePrefix+id); err == nil {
		j.ImageData = img
	}
	if j.Status == StatusCompleted {
		if res, err := s.dbStore.Get(SystemNamespace, resultPrefix+id); err == nil {
			j.ResultData = res
		}
	}
	return j, nil
}

func (s *PersistentStore) getRecord(id string) (*Job, error) {
	data, err := s.dbStore.Get(SystemNamespace, recordPrefix+id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &j, nil
}

func (s *PersistentStore) Current() (*Job, error) {
	s.mu.RLock()
	id := s.current
	s.mu.RUnlock()
	if id == "" {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

func (s *PersistentStore) ApplyEvent(ev Event) (*Job, error) {
	return s.update(ev.JobID, func(j *Job, now time.Time) error {
		return j.applyEvent(ev, now)
	})
}

// Complete writes the result blob first and then applies the guarded
// transition. A rejected transition removes the blob again.
func (s *PersistentStore) Complete(id string, res Result) (*Job, error) {
	if len(res.ResultData) > 0 {
		if err := s.dbStore.Set(SystemNamespace, resultPrefix+id, res.ResultData); err != nil {
			return nil, fmt.Errorf("store result: %w", err)
		}
	}

	j, err := s.update(id, func(j *Job, now time.Time) error {
		return j.complete(res, now)
	})
	if err != nil {
		if len(res.ResultData) > 0 {
			s.dbStore.Delete(SystemNamespace, resultPrefix+id)
		}
		return nil, err
	}
	j.ResultData = res.ResultData
	return j, nil
}

func (s *PersistentStore) Fail(id string, reason FailureReason, msg string) (*Job, error) {
	return s.update(id, func(j *Job, now time.Time) error {
		return j.fail(reason, msg, now)
	})
}

func (s *PersistentStore) Cancel(id string) (*Job, error) {
	j, err := s.update(id, func(j *Job, now time.Time) error {
		return j.cancel(now)
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current == id {
		s.current = ""
	}
	s.mu.Unlock()
	return j, nil
}

// update runs fn inside a single badger transaction on the job record.
func (s *PersistentStore) update(id string, fn func(j *Job, now time.Time) error) (*Job, error) {
	var updated Job
	err := s.dbStore.Update(SystemNamespace, recordPrefix+id, func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var j Job
		if err := json.Unmarshal(old, &j); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		if err := fn(&j, time.Now().UTC()); err != nil {
			return nil, err
		}
		updated = j
		return json.Marshal(&j)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// all loads every job record, newest first.
func (s *PersistentStore) all() []*Job {
	keys, err := s.dbStore.List(SystemNamespace, recordPrefix, 0)
	if err != nil {
		return []*Job{}
	}

	var jobs []*Job
	for _, key := range keys {
		jobID := strings.TrimPrefix(key, recordPrefix)
		if jobID == "" {
			continue
		}
		j, err := s.getRecord(jobID)
		if err != nil {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs
}

func (s *PersistentStore) List(limit, offset int, status string) ([]*Job, int) {
	var filtered []*Job
	for _, j := range s.all() {
		if status == "" || string(j.Status) == status {
			filtered = append(filtered, j)
		}
	}
	return paginate(filtered, limit, offset)
}

func (s *PersistentStore) ListCompleted() []*Job {
	all := s.all()
	completed := make([]*Job, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Status == StatusCompleted {
			completed = append(completed, all[i])
		}
	}
	return completed
}

func (s *PersistentStore) Stats() (pending, processing, completed, failed int) {
	for _, j := range s.all() {
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

// RecoverInterrupted fails every job left pending or processing by a previous
// process. It returns the IDs it failed.
func (s *PersistentStore) RecoverInterrupted() ([]string, error) {
	var recovered []string
	for _, j := range s.all() {
		if j.Status.Terminal() {
			continue
		}
		_, err := s.update(j.ID, func(j *Job, now time.Time) error {
			if j.Status == StatusPending {
				if err := j.start(now); err != nil {
					return err
				}
			}
			return j.fail(ReasonUnknown, InterruptedMessage, now)
		})
		if err != nil {
			return recovered, fmt.Errorf("recover job %s: %w", j.ID, err)
		}
		recovered = append(recovered, j.ID)
	}
	return recovered, nil
}
