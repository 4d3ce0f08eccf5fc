package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	secretFile = "client_secret.json"
	tokenFile  = "token.json"
)

// Status is the authorization status of a channel.
type Status int

const (
	MissingSecret Status = iota
	NotAuthorized
	Connected
	Refreshed
	Expired
	Invalid
	Corrupt
)

func (s Status) String() string {
	switch s {
	case MissingSecret:
		return "Missing Secret"
	case NotAuthorized:
		return "Not Authorized"
	case Connected:
		return "Connected"
	case Refreshed:
		return "Connected (Refreshed)"
	case Expired:
		return "Token Expired"
	case Invalid:
		return "Invalid Token"
	case Corrupt:
		return "Corrupt Token"
	default:
		return ""
	}
}

// Classification is the outcome of [Store.Classify].
//
// Record is set only for [Connected] and [Refreshed]. Err is set for [Invalid], [Corrupt] and [Expired].
type Classification struct {
	Status Status
	Record *models.CredentialRecord
	Err    error
}

// Usable reports whether Record can authorize API calls.
func (c Classification) Usable() bool {
	return c.Status == Connected || c.Status == Refreshed
}

// RefreshAttempted reports whether the record expired and a refresh was tried and rejected.
func (c Classification) RefreshAttempted() bool {
	return c.Status == Expired && errors.Is(c.Err, shared.ErrRefreshFailed)
}

// Store reads, writes and classifies per-channel credential files.
type Store struct {
	root       string
	logger     *log.Logger
	httpClient *http.Client
	now        func() time.Time
	refreshes  singleflight.Group
}

// StoreOpts contains configuration options for creating a Store.
type StoreOpts struct {
	Root       string
	Logger     *log.Logger
	HTTPClient *http.Client // used for token refresh; nil uses [http.DefaultClient]
	Now        func() time.Time
}

// NewStore creates a Store rooted at opts.Root.
func NewStore(opts StoreOpts) *Store {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		root:       opts.Root,
		logger:     opts.Logger,
		httpClient: opts.HTTPClient,
		now:        opts.Now,
	}
}

// Dir returns the folder owned by ch.
func (s *Store) Dir(ch models.ChannelID) string {
	return filepath.Join(s.root, ch.Category, ch.Name)
}

// Channels lists every category/name folder under the root, ordered by category then name. A missing root
// yields no channels.
func (s *Store) Channels() ([]models.ChannelID, error) {
	categories, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channel root: %w", err)
	}

	var out []models.ChannelID
	for _, category := range categories {
		if !category.IsDir() {
			continue
		}
		names, err := os.ReadDir(filepath.Join(s.root, category.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read category %s: %w", category.Name(), err)
		}
		for _, name := range names {
			ch := models.ChannelID{Category: category.Name(), Name: name.Name()}
			if name.IsDir() && ch.Validate() == nil {
				out = append(out, ch)
			}
		}
	}
	return out, nil
}

// SecretPath returns the client_secret.json path for ch.
func (s *Store) SecretPath(ch models.ChannelID) string {
	return filepath.Join(s.Dir(ch), secretFile)
}

// TokenPath returns the token.json path for ch.
func (s *Store) TokenPath(ch models.ChannelID) string {
	return filepath.Join(s.Dir(ch), tokenFile)
}

// LoadValidatedSecret reads and validates the channel's client secret.
//
// This gate runs before any authorization attempt may open a socket.
func (s *Store) LoadValidatedSecret(ch models.ChannelID) (*models.ClientSecret, error) {
	data, err := os.ReadFile(s.SecretPath(ch))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSecretMissing, s.SecretPath(ch))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSecretCorrupt, err)
	}
	return ParseSecret(data)
}

// Classify reports the channel's authorization status. Only an expired, refreshable record causes a network call; a
// successful refresh is persisted before returning.
func (s *Store) Classify(ctx context.Context, ch models.ChannelID) Classification {
	if _, err := os.Stat(s.SecretPath(ch)); err != nil {
		return Classification{Status: MissingSecret}
	}

	rec, err := s.Load(ch)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Classification{Status: NotAuthorized}
	case errors.Is(err, shared.ErrCredentialInvalid):
		return Classification{Status: Invalid, Err: err}
	case err != nil:
		return Classification{Status: Corrupt, Err: err}
	}

	if !rec.Expired(s.now()) {
		return Classification{Status: Connected, Record: rec}
	}

	if !rec.Refreshable() {
		return Classification{Status: Expired, Err: shared.ErrNoRefreshToken}
	}

	next, err := s.refresh(ctx, ch, rec)
	if err != nil {
		s.logger.Warn("token refresh failed", "channel", ch, "error", err)
		return Classification{Status: Expired, Err: fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)}
	}

	return Classification{Status: Refreshed, Record: next}
}

// Load reads token.json for ch.
//
// Returns an error matching [fs.ErrNotExist] when absent, [shared.ErrCredentialCorrupt] when unparsable and
// [shared.ErrCredentialInvalid] when required fields or scopes are missing.
func (s *Store) Load(ch models.ChannelID) (*models.CredentialRecord, error) {
	data, err := os.ReadFile(s.TokenPath(ch))
	if err != nil {
		return nil, err
	}

	var rec models.CredentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCredentialCorrupt, err)
	}

	if err := rec.Validate(Scopes...); err != nil {
		return nil, err
	}

	return &rec, nil
}

// Persist atomically replaces the channel's credential record.
func (s *Store) Persist(ch models.ChannelID, rec *models.CredentialRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential record: %w", err)
	}

	if err := writeFileAtomic(s.TokenPath(ch), data, 0600); err != nil {
		return fmt.Errorf("failed to persist credential record: %w", err)
	}

	s.logger.Debug("credential record persisted", "channel", ch, "expiry", rec.Expiry)
	return nil
}

// Token returns a usable record for ch, refreshing it if needed.
func (s *Store) Token(ctx context.Context, ch models.ChannelID) (*models.CredentialRecord, error) {
	c := s.Classify(ctx, ch)
	switch c.Status {
	case Connected, Refreshed:
		return c.Record, nil
	case MissingSecret:
		return nil, fmt.Errorf("%w: %s", shared.ErrSecretMissing, ch)
	case Expired:
		if c.RefreshAttempted() {
			return nil, fmt.Errorf("channel %s: %w", ch, c.Err)
		}
		return nil, fmt.Errorf("%w: channel %s token expired: %v", shared.ErrNotAuthenticated, ch, c.Err)
	case Invalid, Corrupt:
		return nil, fmt.Errorf("channel %s: %w", ch, c.Err)
	default:
		return nil, fmt.Errorf("%w: channel %s", shared.ErrNotAuthenticated, ch)
	}
}

// Client returns an HTTP client authorized as ch that refreshes on demand and persists every new token it receives.
func (s *Store) Client(ctx context.Context, ch models.ChannelID, rec *models.CredentialRecord) (*http.Client, error) {
	secret, err := s.LoadValidatedSecret(ch)
	if err != nil {
		return nil, err
	}

	ctx = s.clientContext(ctx)
	conf := OAuthConfig(secret, "")
	src := &persistingSource{
		base:   conf.TokenSource(ctx, rec.Token()),
		store:  s,
		ch:     ch,
		scopes: rec.Scopes,
		last:   rec.AccessToken,
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(rec.Token(), src)), nil
}

// WriteSecret validates data as a client secret and installs it for ch.
func (s *Store) WriteSecret(ch models.ChannelID, data []byte) error {
	if _, err := ParseSecret(data); err != nil {
		return err
	}
	return writeFileAtomic(s.SecretPath(ch), data, 0600)
}

// WritePlaceholder writes the "{}" placeholder for a channel that has no secret yet. An existing secret is kept.
func (s *Store) WritePlaceholder(ch models.ChannelID) error {
	if _, err := os.Stat(s.SecretPath(ch)); err == nil {
		return nil
	}
	return writeFileAtomic(s.SecretPath(ch), PlaceholderSecret, 0600)
}

func (s *Store) refresh(ctx context.Context, ch models.ChannelID, rec *models.CredentialRecord) (*models.CredentialRecord, error) {
	v, err, dup := s.refreshes.Do(ch.String(), func() (any, error) {
		secret, err := s.LoadValidatedSecret(ch)
		if err != nil {
			return nil, err
		}

		tok, err := OAuthConfig(secret, "").TokenSource(s.clientContext(ctx), rec.Token()).Token()
		if err != nil {
			return nil, err
		}

		next := models.RecordFromToken(tok, rec.Scopes)
		if next.RefreshToken == "" {
			next.RefreshToken = rec.RefreshToken
		}
		if err := s.Persist(ch, next); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("token refreshed", "channel", ch, "shared", dup)
	return v.(*models.CredentialRecord), nil
}

func (s *Store) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	base   oauth2.TokenSource
	store  *Store
	ch     models.ChannelID
	scopes []string
	last   string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Persist(p.ch, models.RecordFromToken(tok, p.scopes)); err != nil {
			p.store.logger.Warn("failed to persist refreshed token", "channel", p.ch, "error", err)
		}
	}
	return tok, nil
}

// writeFileAtomic writes data to a temp file beside path and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, perm); err != nil {
		return err
	}

	return os.Rename(name, path)
}
