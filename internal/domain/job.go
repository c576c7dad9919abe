package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a job.
// Transitions are monotonic: queued -> running -> {completed|failed|cancelled}.
// Nothing ever leaves a terminal state.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition may leave this state
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobKind represents the type of work a job tracks
type JobKind string

const (
	JobVideo    JobKind = "video"    // single video, muxed or merged
	JobAudio    JobKind = "audio"    // audio-only extraction
	JobPlaylist JobKind = "playlist" // fan-out over playlist entries
)

// ValidateJobKind checks if a job kind is valid
func ValidateJobKind(kind JobKind) bool {
	return kind == JobVideo || kind == JobAudio || kind == JobPlaylist
}

// Job is one tracked unit of orchestration work. After admission the
// executing worker is the only writer; all other access goes through
// read-only snapshots taken under the owning store's lock.
type Job struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	URL         string     `json:"url"`
	Quality     string     `json:"quality"`
	State       JobState   `json:"state"`
	Progress    int        `json:"progress"` // 0-100
	CurrentItem int        `json:"current_item,omitempty"`
	TotalItems  int        `json:"total_items,omitempty"`
	FailedItems int        `json:"failed_items,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	ResultPath  string     `json:"result_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a new job in the queued state
func NewJob(kind JobKind, url, quality string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		URL:       url,
		Quality:   quality,
		State:     StateQueued,
		CreatedAt: time.Now(),
	}
}

// Terminal reports whether the job has reached a terminal state
func (j *Job) Terminal() bool {
	return j.State.Terminal()
}

// MarkRunning transitions the job from queued to running.
// No-op once terminal, so a late worker cannot resurrect a cancelled job.
func (j *Job) MarkRunning() {
	if j.State != StateQueued {
		return
	}
	j.State = StateRunning
	now := time.Now()
	j.StartedAt = &now
}

// MarkCompleted transitions the job to completed with its result artifact
func (j *Job) MarkCompleted(resultPath string) {
	if j.State.Terminal() {
		return
	}
	j.State = StateCompleted
	j.Progress = 100
	j.ResultPath = resultPath
	now := time.Now()
	j.CompletedAt = &now
}

// MarkFailed transitions the job to failed, preserving the error kind and
// detail for the snapshot. Unclassified errors are reported as unavailable.
func (j *Job) MarkFailed(err error) {
	if j.State.Terminal() {
		return
	}
	j.State = StateFailed
	kind := KindOf(err)
	if kind == "" {
		kind = ErrUnavailable
	}
	j.ErrorKind = kind
	j.ErrorDetail = err.Error()
	now := time.Now()
	j.CompletedAt = &now
}

// MarkCancelled transitions the job to cancelled
func (j *Job) MarkCancelled() {
	if j.State.Terminal() {
		return
	}
	j.State = StateCancelled
	now := time.Now()
	j.CompletedAt = &now
}

// Clone returns a copy safe to hand out as a read-only snapshot
func (j *Job) Clone() Job {
	out := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
