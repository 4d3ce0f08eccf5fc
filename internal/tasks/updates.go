package tasks

import (
	"fmt"

	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
)

// UpdateKind distinguishes job events from queue-level signals.
type UpdateKind int

const (
	JobUpdate UpdateKind = iota
	QueueIdle
	QueueStopped
)

func (k UpdateKind) String() string {
	switch k {
	case JobUpdate:
		return "job"
	case QueueIdle:
		return "idle"
	case QueueStopped:
		return "stopped"
	default:
		return ""
	}
}

// Update is a notification from a queue worker to the host.
//
// Progress updates may be dropped when the host falls behind; state transitions are not.
type Update struct {
	Kind      UpdateKind
	Channel   models.ChannelID
	JobID     string
	Title     string
	State     models.JobState
	Progress  int
	Err       error
	Interrupt bool   // failure on the channel the host is showing
	Message   string // human-readable
}

func stateUpdate(ch models.ChannelID, job *models.UploadJob, state models.JobState) Update {
	return Update{
		Kind:     JobUpdate,
		Channel:  ch,
		JobID:    job.ID,
		Title:    job.Title,
		State:    state,
		Progress: job.Progress,
		Message:  fmt.Sprintf("%s: %s", displayTitle(job), state),
	}
}

func progressUpdate(ch models.ChannelID, job *models.UploadJob, pct int) Update {
	return Update{
		Kind:     JobUpdate,
		Channel:  ch,
		JobID:    job.ID,
		Title:    job.Title,
		State:    models.JobUploading,
		Progress: pct,
		Message:  fmt.Sprintf("%s: %d%%", displayTitle(job), pct),
	}
}

func doneUpdate(ch models.ChannelID, job *models.UploadJob) Update {
	u := stateUpdate(ch, job, models.JobDone)
	u.Message = fmt.Sprintf("%s: uploaded as %s", displayTitle(job), job.VideoID)
	return u
}

func failedUpdate(ch models.ChannelID, job *models.UploadJob, err error, interrupt bool) Update {
	state := models.JobError
	if shared.IsCancelled(err) {
		state = models.JobCancelled
		interrupt = false
	}

	u := stateUpdate(ch, job, state)
	u.Err = err
	u.Interrupt = interrupt
	u.Message = fmt.Sprintf("%s: %s", displayTitle(job), shared.Reason(err))
	return u
}

func idleUpdate(ch models.ChannelID, report *Report) Update {
	return Update{
		Kind:    QueueIdle,
		Channel: ch,
		Message: fmt.Sprintf("all done: %d uploaded, %d failed", report.Succeeded(), report.Failed()),
	}
}

func stoppedUpdate(ch models.ChannelID, pending int) Update {
	return Update{
		Kind:    QueueStopped,
		Channel: ch,
		Message: fmt.Sprintf("stopped with %d job(s) pending", pending),
	}
}

func displayTitle(job *models.UploadJob) string {
	if job.Title != "" {
		return job.Title
	}
	return job.VideoPath
}
