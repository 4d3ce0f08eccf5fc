// package services wraps the YouTube Data API for uploads
package services

import (
	"context"
	"io"

	"github.com/desertthunder/ytq/internal/models"
	"google.golang.org/api/youtube/v3"
)

// Uploader transfers one job and returns the created video's ID.
type Uploader interface {
	Upload(ctx context.Context, job *models.UploadJob, progress func(int)) (string, error)
}

// VideoAPI is the subset of the YouTube Data API the uploader drives.
type VideoAPI interface {
	// InsertVideo performs a resumable insert of media, reporting bytes sent after each chunk.
	InsertVideo(ctx context.Context, video *youtube.Video, media io.Reader, opts InsertOptions) (*youtube.Video, error)

	// SetThumbnail attaches an image to an existing video.
	SetThumbnail(ctx context.Context, videoID string, image io.Reader) error
}

// InsertOptions controls one resumable insert.
type InsertOptions struct {
	ChunkSize   int
	ContentType string
	Progress    func(sent int64)
}
