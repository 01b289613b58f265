// Package service is the job API used by the HTTP layer: it validates new
// jobs, runs the pipeline for each one in the background and keeps the job
// store and live subscribers in step with its progress.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/events"
	"github.com/DelxAbde/panel-pal-translate/internal/imagefmt"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
	"github.com/DelxAbde/panel-pal-translate/internal/pipeline"
)

var (
	ErrInvalidSettings = errors.New("invalid job settings")
	ErrClosed          = errors.New("service is shutting down")
)

// Runner executes one job. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, j *job.Job, events chan<- job.Event) (job.Result, error)
}

type Service struct {
	store  job.JobStore
	runner Runner
	hub    *events.Hub
	logger *zap.SugaredLogger
	slots  chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// New creates a service running at most maxConcurrent jobs at once. Jobs
// beyond that stay pending until a slot frees up.
func New(store job.JobStore, runner Runner, hub *events.Hub, maxConcurrent int, logger *zap.SugaredLogger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if hub == nil {
		hub = events.NewHub(0)
	}
	return &Service{
		store:   store,
		runner:  runner,
		hub:     hub,
		logger:  logging.OrNop(logger),
		slots:   make(chan struct{}, maxConcurrent),
		cancels: make(map[string]context.CancelFunc),
	}
}

func (s *Service) Hub() *events.Hub {
	return s.hub
}

// ValidateSettings checks the fields the pipeline depends on. A missing
// source language means auto-detection; missing display settings get the
// defaults.
func ValidateSettings(settings *job.Settings) error {
	settings.SourceLanguage = strings.TrimSpace(settings.SourceLanguage)
	settings.TargetLanguage = strings.TrimSpace(settings.TargetLanguage)

	if settings.SourceLanguage == "" {
		settings.SourceLanguage = job.AutoLanguage
	}
	defaults := job.DefaultSettings()
	settings.Font = cmp.Or(settings.Font, defaults.Font)
	settings.TranslationStyle = cmp.Or(settings.TranslationStyle, defaults.TranslationStyle)
	if settings.FontSize == 0 {
		settings.FontSize = defaults.FontSize
	}

	if settings.TargetLanguage == "" {
		return fmt.Errorf("%w: target language is required", ErrInvalidSettings)
	}
	if settings.TargetLanguage == job.AutoLanguage {
		return fmt.Errorf("%w: target language cannot be %q", ErrInvalidSettings, job.AutoLanguage)
	}
	if settings.FontSize < 0 {
		return fmt.Errorf("%w: font size must be positive", ErrInvalidSettings)
	}
	return nil
}

// CreateJob validates the request, stores a pending job and starts its run.
func (s *Service) CreateJob(settings job.Settings, image []byte, userID string) (*job.Job, error) {
	if err := ValidateSettings(&settings); err != nil {
		return nil, err
	}
	imageType, err := imagefmt.Detect(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	j := job.New(settings, image, imageType)
	j.UserID = userID

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := s.store.Add(j); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("add job: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[j.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Infow("job created", "jobID", j.ID, "source", j.SourceLanguage,
		"target", j.TargetLanguage, "imageType", imageType, "bytes", len(image))

	go s.run(ctx, j.Clone())

	created := j.Clone()
	created.ImageData = nil
	return created, nil
}

func (s *Service) run(ctx context.Context, j *job.Job) {
	defer s.wg.Done()
	defer s.forget(j.ID)

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		s.finishFailed(j.ID, ctx.Err())
		return
	}

	evCh := make(chan job.Event)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range evCh {
			s.apply(ev)
		}
	}()

	res, err := s.runSafely(ctx, j, evCh)
	close(evCh)
	<-drained

	if err != nil {
		s.finishFailed(j.ID, err)
		return
	}

	updated, err := s.store.Complete(j.ID, res)
	if err != nil {
		s.rejected(j.ID, "completion", err)
		return
	}
	s.logger.Infow("job completed", "jobID", j.ID, "detectedLanguage", res.DetectedLanguage)
	s.hub.Publish(job.SnapshotEvent(updated))
}

// runSafely turns a panic inside the runner into an error so that one bad
// page fails its own job instead of the process.
func (s *Service) runSafely(ctx context.Context, j *job.Job, evCh chan<- job.Event) (res job.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("job run panicked", "jobID", j.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.runner.Run(ctx, j, evCh)
}

func (s *Service) finishFailed(id string, runErr error) {
	pErr := pipeline.AsError(runErr)
	reason, msg := pErr.Reason, pErr.Message

	s.mu.Lock()
	closing := s.closed
	s.mu.Unlock()
	if closing && errors.Is(runErr, context.Canceled) {
		reason, msg = job.ReasonUnknown, job.InterruptedMessage
	}

	updated, err := s.store.Fail(id, reason, msg)
	if err != nil {
		s.rejected(id, "failure", err)
		return
	}
	s.logger.Errorw("job failed", "jobID", id, "reason", reason, "error", runErr)
	s.hub.Publish(job.SnapshotEvent(updated))
}

// rejected handles a terminal write refused by the store. A job that was
// cancelled meanwhile refuses it, which is expected.
func (s *Service) rejected(id, write string, err error) {
	if errors.Is(err, job.ErrNotProcessing) {
		s.logger.Infow("discarding stale result", "jobID", id, "write", write)
		return
	}
	s.logger.Errorw("failed to record job result", "jobID", id, "write", write, "error", err)
}

// apply records a pipeline progress event and forwards it, enriched with
// the job's overall state, to subscribers.
func (s *Service) apply(ev job.Event) {
	updated, err := s.store.ApplyEvent(ev)
	if err != nil {
		if !errors.Is(err, job.ErrNotProcessing) {
			s.logger.Warnw("failed to apply progress", "jobID", ev.JobID, "error", err)
		}
		return
	}
	ev.Type = job.EventProgress
	ev.Status = updated.Status
	ev.Progress = updated.Progress
	s.hub.Publish(ev)
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}

// CancelJob fails the job on the user's behalf and stops its run. The store
// refuses any later completion, so cancel wins regardless of timing.
func (s *Service) CancelJob(id string) (*job.Job, error) {
	j, err := s.store.Cancel(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
	}
	s.mu.Unlock()

	s.logger.Infow("job cancelled", "jobID", id)
	s.hub.Publish(job.SnapshotEvent(j))
	return j, nil
}

func (s *Service) GetJob(id string) (*job.Job, error) {
	return s.store.Get(id)
}

func (s *Service) CurrentJob() (*job.Job, error) {
	return s.store.Current()
}

func (s *Service) ListCompletedJobs() []*job.Job {
	return s.store.ListCompleted()
}

func (s *Service) ListJobs(limit, offset int, status string) ([]*job.Job, int) {
	return s.store.List(limit, offset, status)
}

// Stats returns job counts by status plus the number of runs holding a slot.
func (s *Service) Stats() map[string]int {
	pending, processing, completed, failed := s.store.Stats()
	running := len(s.slots)
	return map[string]int{
		"pending":    pending,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
		"total":      pending + processing + completed + failed,
		"running":    running,
	}
}

// Shutdown stops accepting jobs, interrupts running ones and waits for them
// to record their final state or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
