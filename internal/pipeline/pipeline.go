package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
	"github.com/DelxAbde/panel-pal-translate/internal/translate"
)

// User-facing failure messages. Internal error text is logged, never shown.
const (
	MsgExtractionFailed = "Failed to extract text from the image"
	MsgNoTextDetected   = "No text detected in the image"
	MsgUnknown          = "Translation failed due to an unexpected error"
)

// Extractor recognizes text in an image.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Detector guesses the language of text. It always returns a code.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) string
}

// Translator translates text between two languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (translate.Translation, error)
}

// Error is a job-level failure with a message safe to show to the user.
type Error struct {
	Reason  job.FailureReason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError converts any run failure into an *Error. Errors that are not
// already descriptive get the generic message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr
	}
	return &Error{Reason: job.ReasonUnknown, Message: MsgUnknown, Err: err}
}

// Pipeline sequences extraction, optional detection and translation for one
// job at a time. It holds no per-job state and is safe for concurrent runs.
type Pipeline struct {
	extractor  Extractor
	detector   Detector
	translator Translator
	logger     *zap.SugaredLogger
}

func New(extractor Extractor, detector Detector, translator Translator, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		detector:   detector,
		translator: translator,
		logger:     logging.OrNop(logger),
	}
}

// Run processes j and returns its result. Progress is reported on events in
// stage order; the caller owns the channel and must keep draining it until
// Run returns. A failure is always an *Error.
func (p *Pipeline) Run(ctx context.Context, j *job.Job, events chan<- job.Event) (job.Result, error) {
	res, err := p.run(ctx, j, events)
	if err != nil {
		return job.Result{}, AsError(err)
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, j *job.Job, events chan<- job.Event) (job.Result, error) {
	log := p.logger.With("jobID", j.ID)
	emit := func(stage job.Stage, progress int, msg string) error {
		ev := job.Event{
			Type:          job.EventProgress,
			JobID:         j.ID,
			Stage:         stage,
			StageProgress: progress,
			Message:       msg,
			Timestamp:     time.Now().UTC(),
		}
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := emit(job.StageExtraction, 0, "Extracting text from image"); err != nil {
		return job.Result{}, err
	}

	text, err := p.extractor.ExtractText(ctx, j.ImageData)
	if err != nil {
		if ctx.Err() != nil {
			return job.Result{}, ctx.Err()
		}
		return job.Result{}, &Error{Reason: job.ReasonExtractionFailed, Message: MsgExtractionFailed, Err: err}
	}

	if err := emit(job.StageExtraction, 100, "Text extracted"); err != nil {
		return job.Result{}, err
	}

	if strings.TrimSpace(text) == "" {
		return job.Result{}, &Error{Reason: job.ReasonNoTextDetected, Message: MsgNoTextDetected}
	}
	log.Debugw("text extracted", "chars", len([]rune(text)))

	source := j.SourceLanguage
	detected := ""
	if source == job.AutoLanguage {
		if err := emit(job.StageTranslation, 10, "Detecting language"); err != nil {
			return job.Result{}, err
		}
		detected = p.detector.DetectLanguage(ctx, text)
		source = detected
		log.Infow("source language detected", "language", detected)
	}

	if err := emit(job.StageTranslation, 30, fmt.Sprintf("Translating from %s to %s", source, j.TargetLanguage)); err != nil {
		return job.Result{}, err
	}

	tr, err := p.translator.Translate(ctx, text, source, j.TargetLanguage)
	if err != nil {
		return job.Result{}, fmt.Errorf("translate: %w", err)
	}

	done := "Translation complete"
	if tr.Fallback {
		done = "Translation services unavailable, showing original text"
	}
	if err := emit(job.StageTranslation, 100, done); err != nil {
		return job.Result{}, err
	}

	// Rendering onto the image is not implemented; the result image is the
	// uploaded page.
	return job.Result{
		OriginalText:     text,
		TranslatedText:   tr.TranslatedText,
		DetectedLanguage: detected,
		ResultData:       j.ImageData,
		ResultType:       j.ImageType,
	}, nil
}
