// Package snowpilot talks to the snowpilot.org Drupal site: form login
// with a shared cookie jar, CAAML query requests, and archive downloads
// from the static file path.
//
// The remote rate-limits aggressively and serves stale cached archives
// when structurally similar queries arrive back to back, so every request
// first waits out a minimum inter-request interval. All waiting goes
// through an injected clock.
package snowpilot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/snowpit-etl-service/internal/archive"
	"github.com/couchcryptid/snowpit-etl-service/internal/observability"
	"github.com/couchcryptid/snowpit-etl-service/internal/query"
)

const (
	// LoginPath is the Drupal user login form endpoint.
	LoginPath = "/user/login"
	// FilesPath serves the server-generated query archives.
	FilesPath = "/sites/default/files/tmp/"

	// emptyArchiveName is what the server calls the archive it generates
	// for a query matching zero pits.
	emptyArchiveName = "_caaml.tar.gz"

	defaultTimeout = 5 * time.Minute
)

var filenamePattern = regexp.MustCompile(`filename="([^"]+)"`)

// Download is one server-generated archive: the filename announced in the
// Content-Disposition header and the raw tar.gz bytes.
type Download struct {
	Filename string
	Data     []byte
}

// Config carries the connection settings for a session.
type Config struct {
	BaseURL      string
	User         string
	Password     string
	RequestDelay time.Duration
	MaxRetries   int
	Timeout      time.Duration
}

// Session is an authenticated connection to snowpilot.org. It is not safe
// for concurrent use; callers issue requests one at a time.
type Session struct {
	cfg        Config
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	authenticated bool
	lastRequest   time.Time

	// newBackOff builds the per-download retry policy. Tests swap it out
	// to avoid real delays.
	newBackOff func() backoff.BackOff
}

// NewSession creates a session. A nil clock selects the real clock.
func NewSession(cfg Config, logger *slog.Logger, metrics *observability.Metrics, clk clockwork.Clock) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	s := &Session{
		cfg: cfg,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		clock:   clk,
		logger:  logger,
		metrics: metrics,
	}
	s.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.MaxRetries))
	}
	return s, nil
}

// Authenticate logs in through the Drupal user form and keeps the session
// cookie for subsequent requests. Authentication failures are permanent:
// retrying a rejected password only locks the account.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.cfg.User == "" || s.cfg.Password == "" {
		return &AuthenticationError{Reason: "credentials not configured"}
	}

	form := url.Values{
		"name":    {s.cfg.User},
		"pass":    {s.cfg.Password},
		"form_id": {"user_login"},
		"op":      {"Log in"},
	}
	resp, err := s.do(ctx, "login", http.MethodPost, s.endpoint(LoginPath),
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.countRequest("login", "error")
		return &TransportError{Op: "login", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		s.countRequest("login", "error")
		return &AuthenticationError{Reason: fmt.Sprintf("login returned status %d", resp.StatusCode)}
	}
	// Drupal re-renders the login form with an error banner on bad
	// credentials; the status is still 200.
	if bytes.Contains(bytes.ToLower(body), []byte("invalid login")) {
		s.countRequest("login", "error")
		return &AuthenticationError{Reason: "invalid username or password"}
	}

	s.countRequest("login", "ok")
	s.authenticated = true
	s.logger.Info("authenticated to snowpilot", "user", s.cfg.User)
	return nil
}

// Download runs a CAAML query and fetches the archive it generates. A nil
// Download with a nil error is a legitimate empty result. Transient
// failures (403, 5xx, connection errors) are retried with exponential
// backoff; a 403 additionally drops the session so the next attempt
// re-authenticates.
func (s *Session) Download(ctx context.Context, queryString string) (*Download, error) {
	op := func() (*Download, error) {
		d, err := s.attempt(ctx, queryString)
		if err != nil {
			return nil, classifyForRetry(err)
		}
		return d, nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("retrying snowpilot download", "error", err, "wait", wait)
	}
	return backoff.RetryNotifyWithData(op, backoff.WithContext(s.newBackOff(), ctx), notify)
}

// EstimatePitCount downloads the archive for a query and counts its CAAML
// members without keeping anything. The service has no count endpoint, so
// an estimate costs one full download.
func (s *Session) EstimatePitCount(ctx context.Context, queryString string) (int, error) {
	d, err := s.Download(ctx, queryString)
	if err != nil {
		return 0, err
	}
	if d == nil {
		return 0, nil
	}
	n, err := archive.CountCAAML(bytes.NewReader(d.Data))
	if err != nil {
		return 0, fmt.Errorf("count archive members: %w", err)
	}
	return n, nil
}

func (s *Session) attempt(ctx context.Context, queryString string) (*Download, error) {
	if !s.authenticated {
		if err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	filename, err := s.queryArchiveName(ctx, queryString)
	if err != nil || filename == "" {
		return nil, err
	}

	data, err := s.fetchArchive(ctx, filename)
	if err != nil {
		return nil, err
	}
	return &Download{Filename: filename, Data: data}, nil
}

// queryArchiveName issues the query GET and returns the archive filename
// from the Content-Disposition header, or "" for an empty result.
func (s *Session) queryArchiveName(ctx context.Context, queryString string) (string, error) {
	u := s.endpoint(query.QueryPath)
	if queryString != "" {
		u += "?" + queryString
	}

	resp, err := s.do(ctx, "query", http.MethodGet, u, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := s.checkStatus("query", resp.StatusCode); err != nil {
		return "", err
	}
	s.countRequest("query", "ok")

	disposition := resp.Header.Get("Content-Disposition")
	match := filenamePattern.FindStringSubmatch(disposition)
	if match == nil {
		s.logger.Debug("query produced no archive", "query", queryString)
		return "", nil
	}
	filename := match[1]
	if filename == emptyArchiveName {
		s.logger.Debug("query matched zero pits", "query", queryString)
		return "", nil
	}
	return filename, nil
}

func (s *Session) fetchArchive(ctx context.Context, filename string) ([]byte, error) {
	start := s.clock.Now()
	resp, err := s.do(ctx, "archive", http.MethodGet, s.endpoint(FilesPath)+filename, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := s.checkStatus("archive", resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.countRequest("archive", "error")
		return nil, &TransportError{Op: "archive", Err: fmt.Errorf("read body: %w", err)}
	}

	s.countRequest("archive", "ok")
	s.metrics.ArchiveDownloadDuration.Observe(s.clock.Since(start).Seconds())
	s.logger.Info("downloaded archive", "filename", filename, "bytes", len(data))
	return data, nil
}

// do waits out the inter-request interval and performs one HTTP exchange.
// Connection-level failures come back as TransportError.
func (s *Session) do(ctx context.Context, kind, method, fullURL string, body io.Reader, contentType string) (*http.Response, error) {
	if err := s.waitTurn(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.countRequest(kind, "error")
		return nil, &TransportError{Op: kind, Err: err}
	}
	return resp, nil
}

// checkStatus converts a non-200 status into a TransportError. A 403
// invalidates the session so the next attempt logs in again.
func (s *Session) checkStatus(kind string, status int) error {
	if status == http.StatusOK {
		return nil
	}
	s.countRequest(kind, "error")
	if status == http.StatusForbidden {
		s.authenticated = false
		s.metrics.SessionReauths.Inc()
	}
	return &TransportError{Op: kind, StatusCode: status}
}

// waitTurn enforces the minimum interval between requests.
func (s *Session) waitTurn(ctx context.Context) error {
	defer func() { s.lastRequest = s.clock.Now() }()

	if s.cfg.RequestDelay <= 0 || s.lastRequest.IsZero() {
		return nil
	}
	wait := s.cfg.RequestDelay - s.clock.Since(s.lastRequest)
	if wait <= 0 {
		return nil
	}
	select {
	case <-s.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) endpoint(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}

func (s *Session) countRequest(kind, outcome string) {
	s.metrics.SessionRequests.WithLabelValues(kind, outcome).Inc()
}

// classifyForRetry marks errors the retry policy must not touch.
// Authentication failures are permanent; so are client-error statuses
// other than 403.
func classifyForRetry(err error) error {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return backoff.Permanent(err)
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) && !transportErr.Transient() {
		return backoff.Permanent(err)
	}
	return err
}
