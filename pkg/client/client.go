// Package client is a Go client for the recruiting API. The employer session
// is held in an explicit Session value; a 401 answer clears it.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrCircuitOpen  = errors.New("recruit api circuit open")
	ErrUnauthorized = errors.New("unauthorized")
)

// package-level logger for pkg/client; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/client. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recruit api: %d %s", e.Status, e.Detail)
}

// Is makes every 401 answer match ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Session holds the employer bearer token.
type Session struct {
	mu    sync.RWMutex
	token string
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) Clear() { s.Set("") }

func (s *Session) Active() bool { return s.Token() != "" }

type errorBody struct {
	Detail string `json:"detail"`
}

// Client wraps resty with session handling and a simple circuit breaker.
type Client struct {
	http    *resty.Client
	cfg     Config
	session *Session

	failures  int32
	openUntil int64 // unix nano
	closed    int32
}

// New creates a client. A nil session starts signed out.
func New(cfg Config, session *Session) *Client {
	if session == nil {
		session = &Session{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.Backoff).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// only reads are retried
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	logger.Info("client: created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return &Client{http: rc, cfg: cfg, session: session}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session { return c.session }

// Close releases idle connections. It is idempotent.
func (c *Client) Close() error {
	if c == nil || !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if tr, ok := c.http.GetClient().Transport.(interface{ CloseIdleConnections() }); ok {
		tr.CloseIdleConnections()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if c.cfg.CircuitFailureThreshold <= 0 || atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}
	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}
	// half-open: allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if c.cfg.CircuitFailureThreshold > 0 && v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

type request struct {
	method  string
	path    string
	body    any
	out     any
	auth    bool
	headers map[string]string
	query   map[string]string
}

func (c *Client) do(ctx context.Context, rq request) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if rq.auth {
		tok := c.session.Token()
		if tok == "" {
			return ErrUnauthorized
		}
		req.SetAuthToken(tok)
	}
	if rq.body != nil {
		req.SetBody(rq.body)
	}
	if rq.out != nil {
		req.SetResult(rq.out)
	}
	req.SetHeaders(rq.headers)
	req.SetQueryParams(rq.query)

	resp, err := req.Execute(rq.method, rq.path)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("%s %s: %w", rq.method, rq.path, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		c.recordFailure()
	} else {
		atomic.StoreInt32(&c.failures, 0)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode(), Detail: http.StatusText(resp.StatusCode())}
	if eb, ok := resp.Error().(*errorBody); ok && eb.Detail != "" {
		apiErr.Detail = eb.Detail
	}
	if apiErr.Status == http.StatusUnauthorized && rq.auth {
		c.session.Clear()
		logger.Warn("client: session rejected, signed out", slog.String("path", rq.path))
	}
	return apiErr
}

// Status reports the HTTP status carried by err, or 0.
func Status(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
