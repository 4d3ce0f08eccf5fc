package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytq/internal/credentials"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// readTimeout bounds how long one connection may hold the accept loop. Browsers open speculative connections that
	// never send a request line.
	readTimeout = 10 * time.Second

	maxHeaderLines = 128
)

// SessionState is the lifecycle state of an authorization [Session].
type SessionState int

const (
	Idle SessionState = iota
	ListenerBound
	URLEmitted
	AwaitingRedirect
	CodeReceived
	TokenExchanged
	Succeeded
	Cancelled
	Failed
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case ListenerBound:
		return "listener bound"
	case URLEmitted:
		return "url emitted"
	case AwaitingRedirect:
		return "awaiting redirect"
	case CodeReceived:
		return "code received"
	case TokenExchanged:
		return "token exchanged"
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == Succeeded || s == Cancelled || s == Failed
}

// Persister stores the record produced by a successful exchange.
type Persister interface {
	Persist(ch models.ChannelID, rec *models.CredentialRecord) error
}

// Options configures a [Session].
type Options struct {
	Host        string        // interface to bind; defaults to localhost
	IdleTimeout time.Duration // zero waits until cancelled
	HTTPClient  *http.Client  // used for the code exchange
	Logger      *log.Logger
}

// Session is one loopback authorization attempt for a channel.
//
// A Session owns its listener from [NewSession] until [Session.Wait] returns; the listener is closed exactly once on
// every exit path.
type Session struct {
	channel    models.ChannelID
	config     *oauth2.Config
	persister  Persister
	logger     *log.Logger
	httpClient *http.Client
	idle       time.Duration

	listener    net.Listener
	redirectURI string
	authURL     string
	state       string
	verifier    string

	mu       sync.Mutex
	status   SessionState
	conn     net.Conn
	abortErr error
	waited   bool
	stop     context.CancelFunc

	closeOnce sync.Once
}

// NewSession binds an ephemeral loopback port and prepares the authorization URL.
//
// On error nothing is left open.
func NewSession(ch models.ChannelID, secret *models.ClientSecret, persister Persister, opts Options) (*Session, error) {
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, shared.ErrSecretInvalid
	}
	if persister == nil {
		return nil, fmt.Errorf("%w: persister is required", shared.ErrMissingArgument)
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(opts.Host, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrListenerBindFailed, err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	s := &Session{
		channel:     ch,
		persister:   persister,
		logger:      shared.WithLogger(opts.Logger, "channel", ch.String()),
		httpClient:  opts.HTTPClient,
		idle:        opts.IdleTimeout,
		listener:    ln,
		redirectURI: fmt.Sprintf("http://localhost:%d/", port),
		state:       shared.GenerateID(),
		verifier:    oauth2.GenerateVerifier(),
		status:      ListenerBound,
	}

	s.config = credentials.OAuthConfig(secret, s.redirectURI)
	s.authURL = s.config.AuthCodeURL(
		s.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(s.verifier),
	)
	s.setStatus(URLEmitted)

	s.logger.Debug("loopback listener bound", "addr", ln.Addr().String())
	return s, nil
}

// AuthURL returns the URL the user must open to grant consent.
func (s *Session) AuthURL() string { return s.authURL }

// RedirectURI returns the loopback URI the provider redirects to.
func (s *Session) RedirectURI() string { return s.redirectURI }

// Channel returns the channel being authorized.
func (s *Session) Channel() models.ChannelID { return s.channel }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Cancel aborts the session from any goroutine. It is safe to call more than once and after completion.
func (s *Session) Cancel() {
	s.abort(shared.ErrUserCancelled)
}

// Wait accepts connections until the provider's redirect arrives, then exchanges the code and persists the resulting
// record.
//
// Returns [shared.ErrUserCancelled] when cancelled through [Session.Cancel] or ctx, and [shared.ErrTimeout] when the
// idle timeout elapses.
func (s *Session) Wait(ctx context.Context) (*models.CredentialRecord, error) {
	s.mu.Lock()
	if s.waited {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session already awaited", shared.ErrInvalidInput)
	}
	s.waited = true
	ctx, stop := context.WithCancel(ctx)
	s.stop = stop
	s.mu.Unlock()

	defer stop()
	defer s.closeListener()

	done := make(chan struct{})
	defer close(done)
	go s.watch(ctx, done)

	s.setStatus(AwaitingRedirect)
	params, err := s.awaitRedirect()
	if err != nil {
		return nil, s.finish(err)
	}

	s.setStatus(CodeReceived)
	s.closeListener()

	rec, err := s.exchange(ctx, params)
	if err != nil {
		return nil, s.finish(err)
	}

	s.setStatus(TokenExchanged)
	if err := s.persister.Persist(s.channel, rec); err != nil {
		return nil, s.finish(fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err))
	}

	s.setStatus(Succeeded)
	s.logger.Info("channel authorized", "expiry", rec.Expiry)
	return rec, nil
}

func (s *Session) watch(ctx context.Context, done <-chan struct{}) {
	var timeout <-chan time.Time
	if s.idle > 0 {
		t := time.NewTimer(s.idle)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.abort(fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err()))
			return
		}
		s.abort(shared.ErrUserCancelled)
	case <-timeout:
		s.abort(fmt.Errorf("%w: no redirect within %s", shared.ErrTimeout, s.idle))
	}
}

// awaitRedirect runs the accept loop and returns the qualifying query.
func (s *Session) awaitRedirect() (url.Values, error) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if reason := s.aborted(); reason != nil {
				return nil, reason
			}
			return nil, fmt.Errorf("loopback accept: %w", err)
		}

		if !s.track(conn) {
			conn.Close()
			return nil, s.aborted()
		}

		params, done, err := s.serve(conn)
		s.untrack(conn)

		if reason := s.aborted(); reason != nil {
			return nil, reason
		}
		if err != nil {
			return nil, err
		}
		if done {
			return params, nil
		}
	}
}

// serve reads one request line from conn, answers it and closes conn. done is true for a qualifying redirect.
func (s *Session) serve(conn net.Conn) (params url.Values, done bool, err error) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(readTimeout))

	r := bufio.NewReader(conn)
	line, rerr := r.ReadString('\n')
	if rerr != nil && line == "" {
		s.logger.Debug("dropped connection without request line", "error", rerr)
		return nil, false, nil
	}
	drainHeaders(r)

	query, ok := parseRequestLine(line)
	if !ok {
		writeResponse(conn, http.StatusNotFound, notFoundPage)
		return nil, false, nil
	}

	switch {
	case query.Get("state") != "" && query.Get("code") != "":
		writeResponse(conn, http.StatusOK, successPage)
		return query, true, nil
	case query.Get("state") != "" && query.Get("error") != "":
		writeResponse(conn, http.StatusOK, deniedPage)
		if query.Get("state") != s.state {
			return nil, false, fmt.Errorf("%w: state mismatch", shared.ErrRedirectMalformed)
		}
		return nil, false, fmt.Errorf("%w: %s", shared.ErrAuthorizationDenied, query.Get("error"))
	default:
		s.logger.Debug("ignored non-redirect request", "line", strings.TrimSpace(line))
		writeResponse(conn, http.StatusNotFound, notFoundPage)
		return nil, false, nil
	}
}

func (s *Session) exchange(ctx context.Context, params url.Values) (*models.CredentialRecord, error) {
	responseURL := ResponseURL(s.redirectURI, params.Encode())
	u, err := url.Parse(responseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRedirectMalformed, err)
	}

	q := u.Query()
	if q.Get("state") != s.state {
		return nil, fmt.Errorf("%w: state mismatch", shared.ErrRedirectMalformed)
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	tok, err := s.config.Exchange(ctx, q.Get("code"), oauth2.VerifierOption(s.verifier))
	if err != nil {
		if reason := s.aborted(); reason != nil {
			return nil, reason
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err)
	}

	scopes := credentials.Scopes
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		scopes = strings.Fields(granted)
	}
	return models.RecordFromToken(tok, scopes), nil
}

func (s *Session) finish(err error) error {
	if shared.IsCancelled(err) {
		s.setStatus(Cancelled)
		s.logger.Info("authorization cancelled")
	} else {
		s.setStatus(Failed)
		s.logger.Warn("authorization failed", "error", err)
	}
	return err
}

func (s *Session) setStatus(st SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = st
}

// abort records reason and unblocks Accept and any in-flight read.
func (s *Session) abort(reason error) {
	s.mu.Lock()
	if s.abortErr == nil && !s.status.Terminal() {
		s.abortErr = reason
	}
	conn, stop := s.conn, s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.closeListener()
	if conn != nil {
		conn.Close()
	}
}

func (s *Session) aborted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortErr
}

func (s *Session) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortErr != nil {
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
}

func (s *Session) closeListener() {
	s.closeOnce.Do(func() {
		if err := s.listener.Close(); err != nil {
			s.logger.Debug("listener close", "error", err)
		}
	})
}

// ResponseURL joins the redirect URI and a raw query, collapsing duplicate slashes in the path.
func ResponseURL(redirectURI, rawQuery string) string {
	scheme, rest, ok := strings.Cut(redirectURI, "://")
	if !ok {
		return collapseSlashes(redirectURI) + "?" + rawQuery
	}
	return scheme + "://" + collapseSlashes(rest) + "?" + rawQuery
}

func collapseSlashes(s string) string {
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}

// parseRequestLine extracts the query of an HTTP request line such as "GET /?state=x&code=y HTTP/1.1".
func parseRequestLine(line string) (url.Values, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false
	}

	target, err := url.ParseRequestURI(fields[1])
	if err != nil {
		return nil, false
	}

	query, err := url.ParseQuery(target.RawQuery)
	if err != nil {
		return nil, false
	}
	return query, true
}

func drainHeaders(r *bufio.Reader) {
	for range maxHeaderLines {
		line, err := r.ReadString('\n')
		if err != nil || strings.TrimSpace(line) == "" {
			return
		}
	}
}

func writeResponse(conn net.Conn, status int, body string) {
	fmt.Fprintf(conn,
		"HTTP/1.1 %d %s\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, http.StatusText(status), len(body), body)
}
