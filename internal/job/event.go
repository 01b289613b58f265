package job

import "time"

// EventType classifies messages emitted for a job.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is a progress report for one job. The pipeline fills JobID, Stage,
// StageProgress and Message; the service adds the resulting job state before
// publishing it to subscribers.
type Event struct {
	Seq           int64     `json:"seq"`
	Type          EventType `json:"type"`
	JobID         string    `json:"job_id"`
	Stage         Stage     `json:"stage,omitempty"`
	StageProgress int       `json:"stage_progress"`
	Message       string    `json:"message,omitempty"`

	Status   Status `json:"status,omitempty"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether ev closes the job's event stream.
func (ev Event) Terminal() bool {
	return ev.Type == EventCompleted || ev.Type == EventFailed
}

// SnapshotEvent describes the job's current state as an event.
func SnapshotEvent(j *Job) Event {
	ev := Event{
		Type:      EventProgress,
		JobID:     j.ID,
		Stage:     j.Stage,
		Message:   j.ProgressMessage,
		Status:    j.Status,
		Progress:  j.Progress,
		Error:     j.Error,
		Timestamp: j.UpdatedAt,
	}
	switch j.Status {
	case StatusCompleted:
		ev.Type = EventCompleted
	case StatusFailed:
		ev.Type = EventFailed
	}
	return ev
}
