package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/services"
	"github.com/desertthunder/ytq/internal/shared"
	"golang.org/x/time/rate"
)

var errThumbnailStopped = errors.New("queue stopped before the thumbnail was attached")

// CredentialSource yields a usable credential for a channel, refreshing it when needed.
type CredentialSource interface {
	Token(ctx context.Context, ch models.ChannelID) (*models.CredentialRecord, error)
}

// UploaderFactory builds an uploader authorized by rec.
type UploaderFactory func(ctx context.Context, ch models.ChannelID, rec *models.CredentialRecord) (services.Uploader, error)

// HistoryRecorder persists the terminal outcome of a job.
type HistoryRecorder interface {
	Record(ctx context.Context, ch models.ChannelID, result JobResult) error
}

// Observer reports whether the host is currently showing a channel.
type Observer interface {
	Observed(ch models.ChannelID) bool
}

// JobResult is the outcome of one attempted job.
type JobResult struct {
	JobID     string
	Title     string
	VideoPath string
	VideoID   string
	Privacy   models.Privacy
	PublishAt *time.Time
	State     models.JobState
	Err       error
	Duration  time.Duration
}

// Report summarizes one queue run. It holds one [JobResult] per attempted job, in order.
type Report struct {
	Channel  models.ChannelID
	Results  []JobResult
	Started  time.Time
	Finished time.Time
	Stopped  bool
}

// Succeeded returns the number of jobs that finished Done.
func (r *Report) Succeeded() int { return r.count(models.JobDone) }

// Failed returns the number of jobs that finished in Error.
func (r *Report) Failed() int { return r.count(models.JobError) }

// Cancelled returns the number of jobs interrupted by a stop.
func (r *Report) Cancelled() int { return r.count(models.JobCancelled) }

func (r *Report) count(state models.JobState) int {
	n := 0
	for _, res := range r.Results {
		if res.State == state {
			n++
		}
	}
	return n
}

// QueueOpts configures an [UploadQueue].
type QueueOpts struct {
	Channel       models.ChannelID
	Credentials   CredentialSource
	Uploaders     UploaderFactory
	History       HistoryRecorder // optional
	Observer      Observer        // optional; nil treats the channel as observed
	Updates       chan<- Update   // optional
	JobsPerMinute float64         // zero disables pacing
	Logger        *log.Logger
}

// UploadQueue processes one channel's jobs strictly in order, one at a time.
type UploadQueue struct {
	channel       models.ChannelID
	credentials   CredentialSource
	uploaders     UploaderFactory
	history       HistoryRecorder
	observer      Observer
	updates       chan<- Update
	jobsPerMinute float64
	logger        *log.Logger

	mu         sync.Mutex
	pending    []*models.UploadJob
	active     *models.UploadJob
	processing bool
	stop       context.CancelFunc
	done       chan struct{}
	last       *Report
}

// NewUploadQueue creates an idle queue.
func NewUploadQueue(opts QueueOpts) *UploadQueue {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &UploadQueue{
		channel:       opts.Channel,
		credentials:   opts.Credentials,
		uploaders:     opts.Uploaders,
		history:       opts.History,
		observer:      opts.Observer,
		updates:       opts.Updates,
		jobsPerMinute: opts.JobsPerMinute,
		logger:        shared.WithLogger(opts.Logger, "channel", opts.Channel.String()),
	}
}

// Channel returns the channel this queue uploads to.
func (q *UploadQueue) Channel() models.ChannelID { return q.channel }

// Enqueue appends job to the pending list.
func (q *UploadQueue) Enqueue(job *models.UploadJob) error {
	if job == nil || job.VideoPath == "" {
		return fmt.Errorf("%w: job requires a video path", shared.ErrInvalidInput)
	}
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	job.State = models.JobQueued

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	return nil
}

// Pending returns copies of the jobs waiting to run.
func (q *UploadQueue) Pending() []models.UploadJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.UploadJob, len(q.pending))
	for i, job := range q.pending {
		out[i] = *job
	}
	return out
}

// Active returns a copy of the running job, if any.
func (q *UploadQueue) Active() (models.UploadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		return models.UploadJob{}, false
	}
	return *q.active, true
}

// Processing reports whether a run is in progress.
func (q *UploadQueue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Start begins processing on a new goroutine.
//
// Returns [shared.ErrQueueBusy] if a run is already in progress.
func (q *UploadQueue) Start(ctx context.Context) error {
	if q.credentials == nil || q.uploaders == nil {
		return fmt.Errorf("%w: queue requires credentials and an uploader factory", shared.ErrMissingArgument)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.processing {
		return shared.ErrQueueBusy
	}

	runCtx, stop := context.WithCancel(ctx)
	q.processing = true
	q.stop = stop
	q.done = make(chan struct{})

	go q.run(ctx, runCtx, q.done)
	return nil
}

// Stop cancels the in-flight job and halts the run. The interrupted job goes back to the head of the pending list
// unless its video was already created.
func (q *UploadQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		q.stop()
	}
}

// Wait blocks until the current run ends and returns its report. Without a run it returns the last report.
func (q *UploadQueue) Wait() Report {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	if done != nil {
		<-done
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.last == nil {
		return Report{Channel: q.channel}
	}
	return *q.last
}

// run drives jobs until the queue is empty or runCtx is cancelled. Notifications use ctx so a stop does not lose them.
func (q *UploadQueue) run(ctx, runCtx context.Context, done chan struct{}) {
	defer close(done)

	report := &Report{Channel: q.channel, Started: time.Now()}
	q.logger.Info("queue started", "pending", len(q.Pending()))

	var limiter *rate.Limiter
	if q.jobsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(q.jobsPerMinute/60), 1)
	}

	for runCtx.Err() == nil {
		if limiter != nil {
			if err := limiter.Wait(runCtx); err != nil {
				break
			}
		}

		job := q.next()
		if job == nil {
			break
		}

		result := q.process(ctx, runCtx, job)
		report.Results = append(report.Results, result)

		if result.State == models.JobCancelled && result.VideoID == "" {
			q.requeue(job)
			break
		}
		q.record(ctx, result)
	}

	report.Finished = time.Now()

	q.mu.Lock()
	pending := len(q.pending)
	report.Stopped = runCtx.Err() != nil && pending > 0
	q.processing = false
	q.active = nil
	q.stop()
	q.stop = nil
	q.last = report
	q.mu.Unlock()

	if report.Stopped {
		q.logger.Info("queue stopped", "pending", pending)
		q.emit(ctx, stoppedUpdate(q.channel, pending))
		return
	}

	q.logger.Info("queue idle", "uploaded", report.Succeeded(), "failed", report.Failed())
	q.emit(ctx, idleUpdate(q.channel, report))
}

func (q *UploadQueue) next() *models.UploadJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.active = job
	return job
}

func (q *UploadQueue) requeue(job *models.UploadJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.State = models.JobQueued
	job.Progress = 0
	job.Err = nil
	q.pending = append([]*models.UploadJob{job}, q.pending...)
}

// process runs one job to a terminal state.
func (q *UploadQueue) process(ctx, runCtx context.Context, job *models.UploadJob) JobResult {
	started := time.Now()
	logger := shared.WithLogger(q.logger, "job", job.ID)

	q.transition(ctx, job, models.JobAuthenticating)

	videoID, err := q.upload(ctx, runCtx, job)
	if err == nil {
		q.setJob(job, func(j *models.UploadJob) {
			j.State = models.JobDone
			j.VideoID = videoID
			j.Progress = 100
		})
		logger.Info("job done", "video", videoID)
		q.emit(ctx, doneUpdate(q.channel, job))
		return q.result(job, started)
	}

	state := models.JobError
	switch {
	case videoID != "":
		// The media is on the server, so the job can only fail: a cancel here must not lead to a second insert.
		if shared.IsCancelled(err) || runCtx.Err() != nil {
			err = &services.ThumbnailError{VideoID: videoID, Err: errThumbnailStopped}
		}
		logger.Error("job failed after upload", "video", videoID, "error", err)
	case runCtx.Err() != nil || shared.IsCancelled(err):
		if !errors.Is(err, shared.ErrUserCancelled) {
			err = fmt.Errorf("%w: %v", shared.ErrUserCancelled, err)
		}
		state = models.JobCancelled
		logger.Info("job cancelled")
	default:
		logger.Error("job failed", "error", err)
	}

	q.setJob(job, func(j *models.UploadJob) {
		j.State = state
		j.Err = err
		if videoID != "" {
			j.VideoID = videoID
		}
	})
	q.emit(ctx, failedUpdate(q.channel, job, err, q.observed()))
	return q.result(job, started)
}

func (q *UploadQueue) upload(ctx, runCtx context.Context, job *models.UploadJob) (string, error) {
	rec, err := q.credentials.Token(runCtx, q.channel)
	if err != nil {
		return "", err
	}

	uploader, err := q.uploaders(runCtx, q.channel, rec)
	if err != nil {
		return "", err
	}

	q.transition(ctx, job, models.JobUploading)

	finalizing := false
	videoID, err := uploader.Upload(runCtx, job, func(pct int) {
		q.setJob(job, func(j *models.UploadJob) { j.Progress = pct })
		q.sendProgress(progressUpdate(q.channel, job, pct))
		if pct >= 100 && !finalizing {
			finalizing = true
			q.transition(ctx, job, models.JobFinalizing)
		}
	})
	if err == nil && !finalizing {
		q.transition(ctx, job, models.JobFinalizing)
	}
	return videoID, err
}

func (q *UploadQueue) transition(ctx context.Context, job *models.UploadJob, state models.JobState) {
	q.setJob(job, func(j *models.UploadJob) { j.State = state })
	q.emit(ctx, stateUpdate(q.channel, job, state))
}

func (q *UploadQueue) setJob(job *models.UploadJob, fn func(*models.UploadJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(job)
}

func (q *UploadQueue) result(job *models.UploadJob, started time.Time) JobResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	return JobResult{
		JobID:     job.ID,
		Title:     job.Title,
		VideoPath: job.VideoPath,
		VideoID:   job.VideoID,
		Privacy:   job.Privacy,
		PublishAt: job.PublishAt,
		State:     job.State,
		Err:       job.Err,
		Duration:  time.Since(started),
	}
}

func (q *UploadQueue) record(ctx context.Context, result JobResult) {
	if q.history == nil {
		return
	}
	if err := q.history.Record(context.WithoutCancel(ctx), q.channel, result); err != nil {
		q.logger.Warn("failed to record job outcome", "job", result.JobID, "error", err)
	}
}

func (q *UploadQueue) observed() bool {
	if q.observer == nil {
		return true
	}
	return q.observer.Observed(q.channel)
}

// emit delivers a state notification, giving up only when ctx is done.
func (q *UploadQueue) emit(ctx context.Context, u Update) {
	if q.updates == nil {
		return
	}
	select {
	case q.updates <- u:
	case <-ctx.Done():
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (q *UploadQueue) sendProgress(u Update) {
	if q.updates == nil {
		return
	}
	select {
	case q.updates <- u:
	default:
	}
}
