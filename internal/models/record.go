package models

import (
	"fmt"
	"time"
)

// UploadRecord is the ledger entry written when a job reaches a terminal state.
type UploadRecord struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time

	Channel   string
	JobID     string
	Title     string
	VideoPath string
	VideoID   string
	Privacy   Privacy
	PublishAt *time.Time
	State     JobState
	Error     string
}

// NewUploadRecord builds a ledger entry from a job that has reached a terminal state.
func NewUploadRecord(sequence int, channel ChannelID, job *UploadJob) *UploadRecord {
	now := time.Now().UTC()
	r := &UploadRecord{
		sequence:  sequence,
		createdAt: now,
		updatedAt: now,
		Channel:   channel.String(),
		JobID:     job.ID,
		Title:     job.Title,
		VideoPath: job.VideoPath,
		VideoID:   job.VideoID,
		Privacy:   job.Privacy,
		PublishAt: job.PublishAt,
		State:     job.State,
	}
	if job.Err != nil {
		r.Error = job.Err.Error()
	}
	return r
}

func (r *UploadRecord) ID() string            { return r.id }
func (r *UploadRecord) Sequence() int         { return r.sequence }
func (r *UploadRecord) CreatedAt() time.Time  { return r.createdAt }
func (r *UploadRecord) UpdatedAt() time.Time  { return r.updatedAt }
func (r *UploadRecord) DeletedAt() *time.Time { return r.deletedAt }

func (r *UploadRecord) SetID(id string)           { r.id = id }
func (r *UploadRecord) SetSequence(seq int)       { r.sequence = seq }
func (r *UploadRecord) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *UploadRecord) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *UploadRecord) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Validate checks the fields the ledger requires.
func (r *UploadRecord) Validate() error {
	if r.id == "" {
		return fmt.Errorf("upload record id is required")
	}
	if r.Channel == "" {
		return fmt.Errorf("upload record channel is required")
	}
	if r.VideoPath == "" {
		return fmt.Errorf("upload record video path is required")
	}
	if !r.State.Terminal() {
		return fmt.Errorf("upload record state %q is not terminal", r.State)
	}
	return nil
}

var _ Model = (*UploadRecord)(nil)
