package repositories

import (
	"context"
	"database/sql"

	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/tasks"
)

// History records queue outcomes in the upload ledger. It satisfies [tasks.HistoryRecorder].
type History struct {
	uploads *UploadRepository
}

// NewHistory creates a History backed by db.
func NewHistory(db *sql.DB) *History {
	return &History{uploads: NewUploadRepository(db)}
}

// Record writes one ledger row for result.
func (h *History) Record(ctx context.Context, ch models.ChannelID, result tasks.JobResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	job := &models.UploadJob{
		ID:        result.JobID,
		VideoPath: result.VideoPath,
		Title:     result.Title,
		Privacy:   result.Privacy,
		PublishAt: result.PublishAt,
		State:     result.State,
		VideoID:   result.VideoID,
		Err:       result.Err,
	}
	return h.uploads.Create(models.NewUploadRecord(0, ch, job))
}

// Recent returns the newest n records for ch. An empty channel lists every channel.
func (h *History) Recent(ch *models.ChannelID, n int) ([]*models.UploadRecord, error) {
	criteria := map[string]any{"limit": n}
	if ch != nil {
		criteria["channel"] = ch.String()
	}
	return h.uploads.List(criteria)
}

var _ tasks.HistoryRecorder = (*History)(nil)
