package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/ytq/internal/shared"
)

// Privacy is a video privacy level.
type Privacy string

const (
	PrivacyPrivate  Privacy = "private"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPublic   Privacy = "public"
)

// ParsePrivacy validates a privacy level, treating an empty value as private.
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PrivacyPrivate, nil
	case PrivacyPrivate, PrivacyUnlisted, PrivacyPublic:
		return p, nil
	default:
		return "", fmt.Errorf("%w: privacy %q", shared.ErrInvalidInput, s)
	}
}

// JobState is the lifecycle state of one upload job.
type JobState int

const (
	JobQueued JobState = iota
	JobAuthenticating
	JobUploading
	JobFinalizing
	JobDone
	JobError
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobAuthenticating:
		return "authenticating"
	case JobUploading:
		return "uploading"
	case JobFinalizing:
		return "finalizing"
	case JobDone:
		return "done"
	case JobError:
		return "error"
	case JobCancelled:
		return "cancelled"
	default:
		return ""
	}
}

// ParseJobState is the inverse of [JobState.String].
func ParseJobState(s string) (JobState, error) {
	for st := JobQueued; st <= JobCancelled; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: job state %q", shared.ErrInvalidInput, s)
}

// Terminal reports whether the job has finished, successfully or not.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobError || s == JobCancelled
}

// Layouts accepted for the schedule fields of an [UploadPacket].
const (
	ScheduleDateLayout = "2006-01-02"
	ScheduleTimeLayout = "15:04"
)

// UploadPacket is the job description produced by the UI layer.
//
// Schedule date and time are wall-clock values in the user's timezone.
type UploadPacket struct {
	VideoPath     string `toml:"video_path" json:"video_path"`
	Title         string `toml:"title" json:"title"`
	Description   string `toml:"description" json:"description"`
	Tags          string `toml:"tags" json:"tags"`
	Privacy       string `toml:"privacy" json:"privacy"`
	ThumbnailPath string `toml:"thumbnail_path" json:"thumbnail_path,omitempty"`
	ScheduleDate  string `toml:"schedule_date" json:"schedule_date,omitempty"`
	ScheduleTime  string `toml:"schedule_time" json:"schedule_time,omitempty"`
}

// UploadJob is one queued video.
type UploadJob struct {
	ID            string
	VideoPath     string
	Title         string
	Description   string
	Tags          string // raw, parsed at transfer time
	Privacy       Privacy
	ThumbnailPath string
	PublishAt     *time.Time // absolute, UTC

	Progress int
	State    JobState
	VideoID  string
	Err      error
}

// NewUploadJob converts a packet into a job, resolving the schedule in loc to an absolute UTC instant.
//
// A scheduled job is always private.
func NewUploadJob(p UploadPacket, loc *time.Location) (*UploadJob, error) {
	if strings.TrimSpace(p.VideoPath) == "" {
		return nil, fmt.Errorf("%w: video_path is required", shared.ErrInvalidInput)
	}

	privacy, err := ParsePrivacy(p.Privacy)
	if err != nil {
		return nil, err
	}

	publishAt, err := ResolveSchedule(p.ScheduleDate, p.ScheduleTime, loc)
	if err != nil {
		return nil, err
	}
	if publishAt != nil {
		privacy = PrivacyPrivate
	}

	return &UploadJob{
		ID:            shared.GenerateID(),
		VideoPath:     p.VideoPath,
		Title:         p.Title,
		Description:   p.Description,
		Tags:          p.Tags,
		Privacy:       privacy,
		ThumbnailPath: p.ThumbnailPath,
		PublishAt:     publishAt,
		State:         JobQueued,
	}, nil
}

// ResolveSchedule combines a local date and time into a UTC instant. Both empty means unscheduled; a date without a
// time is scheduled at midnight.
func ResolveSchedule(date, clock string, loc *time.Location) (*time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" && clock == "" {
		return nil, nil
	}
	if date == "" {
		return nil, fmt.Errorf("%w: schedule_time %q without schedule_date", shared.ErrInvalidInput, clock)
	}
	if clock == "" {
		clock = "00:00"
	}
	if loc == nil {
		loc = time.Local
	}

	local, err := time.ParseInLocation(ScheduleDateLayout+" "+ScheduleTimeLayout, date+" "+clock, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %s %s: %v", shared.ErrInvalidInput, date, clock, err)
	}

	utc := local.UTC()
	return &utc, nil
}
