package job

// JobStore is the job repository. Every mutation is an atomic
// read-modify-write keyed by job ID; completion and failure writes are only
// applied while the job is still processing.
type JobStore interface {
	Add(j *Job) error
	Get(id string) (*Job, error)
	Current() (*Job, error)
	ApplyEvent(ev Event) (*Job, error)
	Complete(id string, res Result) (*Job, error)
	Fail(id string, reason FailureReason, msg string) (*Job, error)
	Cancel(id string) (*Job, error)
	List(limit, offset int, status string) ([]*Job, int)
	ListCompleted() []*Job
	Stats() (pending, processing, completed, failed int)
}
