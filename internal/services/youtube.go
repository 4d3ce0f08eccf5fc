// YouTube Data API upload implementation
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// DefaultChunkSize is the resumable upload chunk size.
const DefaultChunkSize = 1024 * 1024

var insertParts = []string{"snippet", "status"}

// UploaderOpts configures a [YouTubeUploader].
type UploaderOpts struct {
	ChunkSize  int
	CategoryID string
	Language   string
	Endpoint   string // overrides the API base URL
	Logger     *log.Logger
}

// ThumbnailError reports a thumbnail attach that failed after the video was created.
type ThumbnailError struct {
	VideoID string
	Err     error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("%v: video %s: %v", shared.ErrThumbnailFailed, e.VideoID, e.Err)
}

func (e *ThumbnailError) Unwrap() []error {
	return []error{shared.ErrThumbnailFailed, e.Err}
}

// YouTubeUploader performs chunked resumable uploads with an optional thumbnail.
type YouTubeUploader struct {
	api    VideoAPI
	opts   UploaderOpts
	logger *log.Logger
}

// NewYouTubeUploader creates an uploader whose requests are authorized by httpClient.
func NewYouTubeUploader(ctx context.Context, httpClient *http.Client, opts UploaderOpts) (*YouTubeUploader, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return NewUploader(&youtubeAPI{svc: svc}, opts), nil
}

// NewUploader creates an uploader over api.
func NewUploader(api VideoAPI, opts UploaderOpts) *YouTubeUploader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.CategoryID == "" {
		opts.CategoryID = DefaultCategoryID
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &YouTubeUploader{api: api, opts: opts, logger: opts.Logger}
}

// Upload sends job's media and thumbnail, reporting 0-100 progress after each chunk.
//
// Errors wrap one of [shared.ErrTransferIO], [shared.ErrTransferTransport], [shared.ErrMetadataRejected],
// [shared.ErrThumbnailFailed] or [shared.ErrUserCancelled]. A thumbnail failure is a [*ThumbnailError] carrying the
// created video's ID.
func (u *YouTubeUploader) Upload(ctx context.Context, job *models.UploadJob, progress func(int)) (string, error) {
	if progress == nil {
		progress = func(int) {}
	}

	f, err := os.Open(job.VideoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrTransferIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrTransferIO, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", shared.ErrTransferIO, job.VideoPath)
	}

	size := info.Size()
	last := -1
	report := func(sent int64) {
		pct := percent(sent, size)
		if pct != last {
			last = pct
			progress(pct)
		}
	}

	logger := shared.WithLogger(u.logger, "job", job.ID, "file", filepath.Base(job.VideoPath))
	logger.Debug("starting upload", "bytes", size, "chunk", u.opts.ChunkSize)

	report(0)
	video, err := u.api.InsertVideo(ctx, BuildVideo(job, u.opts), f, InsertOptions{
		ChunkSize:   u.opts.ChunkSize,
		ContentType: contentType(job.VideoPath),
		Progress:    report,
	})
	if err != nil {
		return "", classifyTransferError(ctx, err)
	}
	if video == nil || video.Id == "" {
		return "", fmt.Errorf("%w: response carried no video id", shared.ErrTransferTransport)
	}
	report(size)

	if job.ThumbnailPath != "" {
		if err := u.attachThumbnail(ctx, video.Id, job.ThumbnailPath); err != nil {
			logger.Warn("thumbnail attach failed", "video", video.Id, "error", err)
			return video.Id, &ThumbnailError{VideoID: video.Id, Err: err}
		}
	}

	logger.Info("upload complete", "video", video.Id)
	return video.Id, nil
}

func (u *YouTubeUploader) attachThumbnail(ctx context.Context, videoID, path string) error {
	img, err := os.Open(path)
	if err != nil {
		return err
	}
	defer img.Close()
	return u.api.SetThumbnail(ctx, videoID, img)
}

func classifyTransferError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", shared.ErrUserCancelled, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", shared.ErrMetadataRejected, gerr.Message)
	}

	return fmt.Errorf("%w: %v", shared.ErrTransferTransport, err)
}

func percent(sent, total int64) int {
	if total <= 0 {
		return 100
	}
	pct := int(sent * 100 / total)
	return max(0, min(100, pct))
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// youtubeAPI adapts [youtube.Service] to [VideoAPI].
type youtubeAPI struct {
	svc *youtube.Service
}

func (a *youtubeAPI) InsertVideo(ctx context.Context, video *youtube.Video, media io.Reader, opts InsertOptions) (*youtube.Video, error) {
	call := a.svc.Videos.Insert(insertParts, video).
		Media(media, googleapi.ChunkSize(opts.ChunkSize), googleapi.ContentType(opts.ContentType)).
		Context(ctx)

	if opts.Progress != nil {
		call = call.ProgressUpdater(func(current, _ int64) {
			opts.Progress(current)
		})
	}

	return call.Do()
}

func (a *youtubeAPI) SetThumbnail(ctx context.Context, videoID string, image io.Reader) error {
	_, err := a.svc.Thumbnails.Set(videoID).Media(image).Context(ctx).Do()
	return err
}
