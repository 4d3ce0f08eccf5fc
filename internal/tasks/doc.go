// Package tasks runs per-channel upload queues and keeps the registry of channels.
//
// # Upload Queue
//
// [UploadQueue] holds one channel's pending jobs and runs them strictly in enqueue order on a single worker
// goroutine. [UploadQueue.Start] refuses to start a second worker while one is running.
//
// Each job moves through:
//
//	Queued -> Authenticating -> Uploading (0-100) -> Finalizing -> Done | Error
//
// A failed job does not halt the queue; the worker moves on to the next job. [UploadQueue.Stop] interrupts the
// in-flight job, marks it Cancelled in the run's [Report] and puts it back at the head of the pending list. A job whose
// video already exists is never requeued: a stop during its thumbnail attach fails it with the video ID kept.
//
// Jobs can be paced with a token bucket ([golang.org/x/time/rate]) to stay inside upload quotas.
//
// # Progress Reporting
//
// Workers never touch host state directly. Everything goes through an [Update] channel owned by the host:
//   - progress updates use select with default and may be dropped
//   - state transitions block until delivered or the run's parent context ends
//   - a final [QueueIdle] or [QueueStopped] update closes every run
//
// # Coordinator
//
// [Coordinator] maps each channel to its queue and its pending authorization session. Starting an authorization
// for a channel tears down the previous session for that channel first, so no listener is orphaned. It also
// tracks which channel the host is showing; failures on other channels are delivered with Interrupt unset.
package tasks
