// Package session provides the cookie-backed HTTP session used for catalog
// access, authenticated logins and asset downloads.
package session

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// DefaultUserAgent identifies the client to USGS services.
const DefaultUserAgent = "landsatlook/1.0 (+https://github.com/jobrunner/landsatlook)"

// Session wraps an http.Client whose cookies persist across requests.
// It is not safe to reconfigure concurrently with requests.
type Session struct {
	client   *http.Client
	jar      *recordingJar
	headers  http.Header
	username string
	password string
}

// Config holds session configuration.
type Config struct {
	UserAgent string
	Headers   map[string]string
	Username  string // HTTP basic auth, sent on every request when set
	Password  string

	// Transport overrides the default round tripper.
	Transport http.RoundTripper
}

var _ output.Session = (*Session)(nil)

// New creates a new session with an empty cookie jar.
func New(cfg Config) (*Session, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	jar := newRecordingJar(inner)

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	headers := make(http.Header)
	headers.Set("User-Agent", cfg.UserAgent)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Session{
		client: &http.Client{
			Jar:       jar,
			Transport: cfg.Transport,
		},
		jar:      jar,
		headers:  headers,
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

// Jar returns the cookie jar backing the session.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Do sends req with the session headers and cookies.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	for k, vals := range s.headers {
		if req.Header.Get(k) == "" {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
	}
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	return s.client.Do(req)
}

// Get issues a streaming GET request. The timeout bounds the wait for the
// response headers and then every single body read, not the whole transfer.
// The caller must close the body.
func (s *Session) Get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, cancel)
	}

	resp, err := s.Do(req)
	if err != nil {
		if timer != nil {
			timer.Stop()
		}
		cancel()
		return nil, err
	}

	resp.Body = &idleTimeoutBody{
		ReadCloser: resp.Body,
		timer:      timer,
		timeout:    timeout,
		cancel:     cancel,
	}
	return resp, nil
}

// idleTimeoutBody cancels the request when no read completes within timeout.
type idleTimeoutBody struct {
	io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	cancel  context.CancelFunc
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	if b.timer != nil {
		b.timer.Reset(b.timeout)
	}
	return b.ReadCloser.Read(p)
}

func (b *idleTimeoutBody) Close() error {
	if b.timer != nil {
		b.timer.Stop()
	}
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
