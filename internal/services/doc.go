// Package services drives the YouTube Data API for one upload at a time.
//
// # Uploads
//
// [YouTubeUploader] opens the media file, builds the insert payload with [BuildVideo] and sends the body as a
// resumable upload in fixed-size chunks (1 MiB by default). Progress is reported as an integer percentage after each
// acknowledged chunk.
//
// When the job has a thumbnail, a separate thumbnails.set call follows against the returned video ID. A failure there
// fails the job even though the video already exists; the ID is still available through [ThumbnailError].
//
// # Metadata
//
// Tags arrive as one raw string and are split by [ParseTags] on commas and whitespace. A job with a publish instant
// is always sent as private with publishAt in RFC3339 UTC.
//
// # Error Handling
//
// Upload errors wrap the shared sentinels:
//   - [shared.ErrTransferIO] : media file missing or unreadable
//   - [shared.ErrMetadataRejected] : the API answered 400
//   - [shared.ErrTransferTransport] : any other send failure, including deadlines
//   - [shared.ErrThumbnailFailed] : thumbnail attach failed after the insert
//   - [shared.ErrUserCancelled] : the context was cancelled
//
// # Testing
//
// The API calls sit behind [VideoAPI] so the upload logic can run against a fake. The production adapter wraps
// [youtube.Service].
package services
