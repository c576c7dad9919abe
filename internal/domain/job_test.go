package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_StartsQueued(t *testing.T) {
	job := NewJob(JobVideo, "https://youtube.com/watch?v=dQw4w9WgXcQ", "1080p")

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StateQueued, job.State)
	assert.Equal(t, 0, job.Progress)
	assert.False(t, job.Terminal())
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestJob_LifecycleTransitions(t *testing.T) {
	job := NewJob(JobVideo, "https://youtube.com/watch?v=dQw4w9WgXcQ", "best")

	job.MarkRunning()
	assert.Equal(t, StateRunning, job.State)
	require.NotNil(t, job.StartedAt)

	job.MarkCompleted("/tmp/out.mp4")
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "/tmp/out.mp4", job.ResultPath)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_TerminalStatesAreFinal(t *testing.T) {
	tests := []struct {
		name string
		mark func(*Job)
		want JobState
	}{
		{"completed", func(j *Job) { j.MarkCompleted("/tmp/a.mp4") }, StateCompleted},
		{"failed", func(j *Job) { j.MarkFailed(NewError(ErrNoFormats, "nothing usable")) }, StateFailed},
		{"cancelled", func(j *Job) { j.MarkCancelled() }, StateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(JobVideo, "https://youtube.com/watch?v=dQw4w9WgXcQ", "best")
			job.MarkRunning()
			tt.mark(job)
			require.Equal(t, tt.want, job.State)

			// No transition may leave a terminal state
			job.MarkRunning()
			assert.Equal(t, tt.want, job.State)
			job.MarkCompleted("/tmp/other.mp4")
			assert.Equal(t, tt.want, job.State)
			job.MarkFailed(NewError(ErrUnavailable, "late failure"))
			assert.Equal(t, tt.want, job.State)
			job.MarkCancelled()
			assert.Equal(t, tt.want, job.State)
		})
	}
}

func TestJob_MarkRunningOnlyFromQueued(t *testing.T) {
	job := NewJob(JobVideo, "https://youtube.com/watch?v=dQw4w9WgXcQ", "best")
	job.MarkCancelled()

	job.MarkRunning()
	assert.Equal(t, StateCancelled, job.State)
	assert.Nil(t, job.StartedAt)
}

func TestJob_MarkFailedPreservesErrorKind(t *testing.T) {
	job := NewJob(JobVideo, "https://youtube.com/watch?v=dQw4w9WgXcQ", "best")
	job.MarkRunning()
	job.MarkFailed(Errorf(ErrMerge, "ffmpeg exited with status 1"))

	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, ErrMerge, job.ErrorKind)
	assert.Contains(t, job.ErrorDetail, "ffmpeg exited")
}

func TestJob_MarkFailedDefaultsUnclassifiedErrors(t *testing.T) {
	job := NewJob(JobVideo, "https://youtube.com/watch?v=dQw4w9WgXcQ", "best")
	job.MarkRunning()
	job.MarkFailed(assert.AnError)

	assert.Equal(t, ErrUnavailable, job.ErrorKind)
}

func TestJob_CloneIsIndependent(t *testing.T) {
	job := NewJob(JobPlaylist, "https://youtube.com/playlist?list=PLx", "720p")
	job.MarkRunning()

	snap := job.Clone()
	job.MarkCompleted("/tmp/out")

	assert.Equal(t, StateRunning, snap.State)
	require.NotNil(t, snap.StartedAt)
	assert.NotSame(t, job.StartedAt, snap.StartedAt)
}

func TestValidateJobKind(t *testing.T) {
	assert.True(t, ValidateJobKind(JobVideo))
	assert.True(t, ValidateJobKind(JobAudio))
	assert.True(t, ValidateJobKind(JobPlaylist))
	assert.False(t, ValidateJobKind("torrent"))
}
