package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytq/internal/credentials"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/server"
	"github.com/desertthunder/ytq/internal/services"
	"github.com/desertthunder/ytq/internal/shared"
)

// AuthOutcome is the single result delivered for an [Coordinator.Authorize] call.
type AuthOutcome struct {
	Channel models.ChannelID
	Record  *models.CredentialRecord
	Err     error
}

// CoordinatorOpts contains the dependencies shared by every channel.
type CoordinatorOpts struct {
	Store         *credentials.Store
	Uploaders     UploaderFactory
	History       HistoryRecorder
	Updates       chan<- Update
	JobsPerMinute float64
	Auth          server.Options
	Logger        *log.Logger
}

// Coordinator is the registry mapping each channel to its upload queue and its pending authorization session.
//
// Channels are independent; the registry mutex is the only lock they share.
type Coordinator struct {
	store         *credentials.Store
	uploaders     UploaderFactory
	history       HistoryRecorder
	updates       chan<- Update
	jobsPerMinute float64
	auth          server.Options
	logger        *log.Logger

	mu       sync.Mutex
	queues   map[models.ChannelID]*UploadQueue
	sessions map[models.ChannelID]*server.Session
	observed *models.ChannelID
}

// NewCoordinator creates an empty registry.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Auth.Logger == nil {
		opts.Auth.Logger = opts.Logger
	}
	return &Coordinator{
		store:         opts.Store,
		uploaders:     opts.Uploaders,
		history:       opts.History,
		updates:       opts.Updates,
		jobsPerMinute: opts.JobsPerMinute,
		auth:          opts.Auth,
		logger:        opts.Logger,
		queues:        make(map[models.ChannelID]*UploadQueue),
		sessions:      make(map[models.ChannelID]*server.Session),
	}
}

// Queue returns the channel's queue, creating it on first use.
func (c *Coordinator) Queue(ch models.ChannelID) (*UploadQueue, error) {
	if err := ch.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[ch]; ok {
		return q, nil
	}

	q := NewUploadQueue(QueueOpts{
		Channel:       ch,
		Credentials:   c.store,
		Uploaders:     c.uploaders,
		History:       c.history,
		Observer:      c,
		Updates:       c.updates,
		JobsPerMinute: c.jobsPerMinute,
		Logger:        c.logger,
	})
	c.queues[ch] = q
	return q, nil
}

// Channels returns every channel with a registered queue.
func (c *Coordinator) Channels() []models.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChannelID, 0, len(c.queues))
	for ch := range c.queues {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b models.ChannelID) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// Classify delegates to the credential store.
func (c *Coordinator) Classify(ctx context.Context, ch models.ChannelID) credentials.Classification {
	return c.store.Classify(ctx, ch)
}

// Authorize starts a loopback authorization for ch.
//
// The client secret is validated before any socket is opened. A session already pending for ch is torn down first.
// The returned channel receives exactly one outcome and is then closed.
func (c *Coordinator) Authorize(ctx context.Context, ch models.ChannelID) (*server.Session, <-chan AuthOutcome, error) {
	if err := ch.Validate(); err != nil {
		return nil, nil, err
	}

	secret, err := c.store.LoadValidatedSecret(ch)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	if prev, ok := c.sessions[ch]; ok {
		c.logger.Debug("tearing down pending authorization", "channel", ch)
		prev.Cancel()
		delete(c.sessions, ch)
	}

	sess, err := server.NewSession(ch, secret, c.store, c.auth)
	if err != nil {
		c.mu.Unlock()
		return nil, nil, err
	}
	c.sessions[ch] = sess
	c.mu.Unlock()

	out := make(chan AuthOutcome, 1)
	go func() {
		defer close(out)
		rec, err := sess.Wait(ctx)

		c.mu.Lock()
		if c.sessions[ch] == sess {
			delete(c.sessions, ch)
		}
		c.mu.Unlock()

		out <- AuthOutcome{Channel: ch, Record: rec, Err: err}
	}()

	return sess, out, nil
}

// CancelAuthorization cancels the channel's pending session. It reports whether one existed.
func (c *Coordinator) CancelAuthorization(ch models.ChannelID) bool {
	c.mu.Lock()
	sess, ok := c.sessions[ch]
	delete(c.sessions, ch)
	c.mu.Unlock()

	if ok {
		sess.Cancel()
	}
	return ok
}

// AuthorizationPending reports whether ch has a session waiting for its redirect.
func (c *Coordinator) AuthorizationPending(ch models.ChannelID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[ch]
	return ok
}

// SetObserved records the channel the host is showing.
func (c *Coordinator) SetObserved(ch models.ChannelID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed = &ch
}

// ClearObserved records that no channel is shown.
func (c *Coordinator) ClearObserved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed = nil
}

// Observed reports whether ch is the channel the host is showing.
func (c *Coordinator) Observed(ch models.ChannelID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observed != nil && *c.observed == ch
}

// Shutdown cancels every pending session and stops every queue, then waits for the queues to settle.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	sessions := make([]*server.Session, 0, len(c.sessions))
	for ch, s := range c.sessions {
		sessions = append(sessions, s)
		delete(c.sessions, ch)
	}
	queues := make([]*UploadQueue, 0, len(c.queues))
	for _, q := range c.queues {
		queues = append(queues, q)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
	for _, q := range queues {
		q.Stop()
	}
	for _, q := range queues {
		q.Wait()
	}
}

// YouTubeUploaders returns an [UploaderFactory] whose uploaders are authorized through store and persist any token
// refreshed mid-transfer.
func YouTubeUploaders(store *credentials.Store, opts services.UploaderOpts) UploaderFactory {
	return func(ctx context.Context, ch models.ChannelID, rec *models.CredentialRecord) (services.Uploader, error) {
		client, err := store.Client(ctx, ch, rec)
		if err != nil {
			return nil, err
		}
		uploader, err := services.NewYouTubeUploader(ctx, client, opts)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch, err)
		}
		return uploader, nil
	}
}
