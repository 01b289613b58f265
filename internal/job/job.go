package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Stage string

const (
	StageExtraction  Stage = "extraction"
	StageTranslation Stage = "translation"
	// StageRendering is reserved for composing translated text onto the image.
	StageRendering Stage = "rendering"
)

func (s Stage) rank() int {
	switch s {
	case StageExtraction:
		return 1
	case StageTranslation:
		return 2
	case StageRendering:
		return 3
	default:
		return 0
	}
}

type FailureReason string

const (
	ReasonExtractionFailed FailureReason = "extraction_failed"
	ReasonNoTextDetected   FailureReason = "no_text_detected"
	ReasonCancelledByUser  FailureReason = "cancelled_by_user"
	ReasonUnknown          FailureReason = "unknown"
)

// AutoLanguage asks the pipeline to detect the source language.
const AutoLanguage = "auto"

const CancelledMessage = "Cancelled by user"

var (
	ErrNotFound          = errors.New("job not found")
	ErrNotProcessing     = errors.New("job is not processing")
	ErrTerminal          = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrDuplicate         = errors.New("job already exists")
)

// Settings are the user selections a job is created with.
type Settings struct {
	SourceLanguage   string `json:"source_language"`
	TargetLanguage   string `json:"target_language"`
	Font             string `json:"font"`
	FontSize         int    `json:"font_size"`
	TranslationStyle string `json:"translation_style"`
}

// DefaultSettings are used for any field a request leaves empty.
func DefaultSettings() Settings {
	return Settings{
		SourceLanguage:   "ja",
		TargetLanguage:   "en",
		Font:             "Comic Sans MS, cursive",
		FontSize:         14,
		TranslationStyle: "bubble_replace",
	}
}

// WithDefaults returns s with empty fields taken from d.
func (s Settings) WithDefaults(d Settings) Settings {
	if s.SourceLanguage == "" {
		s.SourceLanguage = d.SourceLanguage
	}
	if s.TargetLanguage == "" {
		s.TargetLanguage = d.TargetLanguage
	}
	if s.Font == "" {
		s.Font = d.Font
	}
	if s.FontSize == 0 {
		s.FontSize = d.FontSize
	}
	if s.TranslationStyle == "" {
		s.TranslationStyle = d.TranslationStyle
	}
	return s
}

type Job struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id,omitempty"`
	Status          Status `json:"status"`
	Progress        int    `json:"progress"`
	Stage           Stage  `json:"stage,omitempty"`
	ProgressMessage string `json:"progress_message,omitempty"`

	SourceLanguage   string `json:"source_language"`
	TargetLanguage   string `json:"target_language"`
	DetectedLanguage string `json:"detected_language,omitempty"`

	// Display preferences carried for a future rendering stage.
	Font             string `json:"font"`
	FontSize         int    `json:"font_size"`
	TranslationStyle string `json:"translation_style"`

	ImageData  []byte `json:"-"`
	ImageType  string `json:"image_type"`
	ResultData []byte `json:"-"`
	ResultType string `json:"result_type,omitempty"`

	OriginalText   string `json:"original_text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`

	Error         string        `json:"error,omitempty"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result is what a successful pipeline run stores on its job.
type Result struct {
	OriginalText     string
	TranslatedText   string
	DetectedLanguage string
	ResultData       []byte
	ResultType       string
}

func New(settings Settings, image []byte, imageType string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:               uuid.NewString(),
		Status:           StatusPending,
		SourceLanguage:   settings.SourceLanguage,
		TargetLanguage:   settings.TargetLanguage,
		Font:             settings.Font,
		FontSize:         settings.FontSize,
		TranslationStyle: settings.TranslationStyle,
		ImageData:        image,
		ImageType:        imageType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a copy safe to hand out of a store. Byte slices are shared;
// they are never mutated after being set.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// OverallProgress maps a stage-local percentage onto the job's 0-100 scale.
// Extraction covers 0-50 and translation 50-99; only completion reaches 100.
func OverallProgress(stage Stage, p int) int {
	p = min(max(p, 0), 100)
	switch stage {
	case StageExtraction:
		return p / 2
	case StageTranslation:
		return min(50+p/2, 99)
	default:
		return 99
	}
}

func (j *Job) start(now time.Time) error {
	if j.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	j.UpdatedAt = now
	return nil
}

// applyEvent records stage progress. The first event moves a pending job to
// processing. Progress and stage never move backwards.
func (j *Job) applyEvent(ev Event, now time.Time) error {
	if j.Status == StatusPending {
		if err := j.start(now); err != nil {
			return err
		}
	}
	if j.Status != StatusProcessing {
		return fmt.Errorf("%w: %s", ErrNotProcessing, j.Status)
	}

	if ev.Stage.rank() >= j.Stage.rank() {
		j.Stage = ev.Stage
		if ev.Message != "" {
			j.ProgressMessage = ev.Message
		}
	}
	if p := OverallProgress(ev.Stage, ev.StageProgress); p > j.Progress {
		j.Progress = p
	}
	j.UpdatedAt = now
	return nil
}

func (j *Job) complete(res Result, now time.Time) error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("%w: %s", ErrNotProcessing, j.Status)
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.ProgressMessage = ""
	j.OriginalText = res.OriginalText
	j.TranslatedText = res.TranslatedText
	j.DetectedLanguage = res.DetectedLanguage
	j.ResultData = res.ResultData
	j.ResultType = res.ResultType
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

func (j *Job) fail(reason FailureReason, msg string, now time.Time) error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("%w: %s", ErrNotProcessing, j.Status)
	}
	j.Status = StatusFailed
	j.Error = msg
	j.FailureReason = reason
	j.ProgressMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// cancel fails the job on the user's behalf. A pending job passes through
// processing within the same update.
func (j *Job) cancel(now time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, j.Status)
	}
	if j.Status == StatusPending {
		if err := j.start(now); err != nil {
			return err
		}
	}
	return j.fail(ReasonCancelledByUser, CancelledMessage, now)
}
