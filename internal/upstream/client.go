// Package upstream implements the Upstream Client (C5): a thin HTTP
// client around a single provider call. It injects the provider's
// bearer token and base URL, applies the provider's timeout to both the
// connect and idle-read phases, and classifies failures into the
// UPSTREAM_TRANSPORT / UPSTREAM_HTTP_ERROR / UPSTREAM_MALFORMED error
// kinds the Proxy Engine branches on.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/util"
)

// DefaultTimeout applies when neither the provider nor the caller sets one.
const DefaultTimeout = 60 * time.Second

// Response is the result of a single upstream call. Body is always
// present; callers must close it even for non-2xx statuses.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// HTTPError records a non-2xx upstream status. The Proxy Engine surfaces
// it as UPSTREAM_HTTP_ERROR and fails over to the next candidate; Body
// holds at most the first 64 KiB of the upstream response and is not
// relayed to the caller.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// Client issues calls against providers over a shared transport, the way
// a connection-pooling HTTP client should: one pool, many hosts.
type Client struct {
	transport *http.Transport
}

// New builds a Client with a shared, connection-pooling transport.
func New() *Client {
	return &Client{
		transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Call issues one HTTP request against provider, joining baseURL and
// path, injecting the bearer token, and forwarding headers (the caller's
// own Authorization header, if any, is overwritten). When stream is
// true, Response.Body is handed back unread so the caller can relay it
// chunk by chunk; the idle-read phase still enforces the provider's
// timeout between chunks. When stream is false, callers should read
// Response.Body to completion themselves; Call does not buffer it.
func (c *Client) Call(ctx context.Context, provider domain.Provider, path string, headers http.Header, body []byte, stream bool) (*Response, error) {
	timeout := provider.EffectiveTimeout(domain.DurationField(DefaultTimeout)).Duration()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reqCtx, cancel := context.WithCancel(ctx)
	idleTimer := time.AfterFunc(timeout, cancel)

	url := util.JoinURLPath(provider.BaseURL, path)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, newBodyReader(body))
	if err != nil {
		idleTimer.Stop()
		cancel()
		return nil, domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("building upstream request: %w", err))
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{
		Transport: c.transport,
		// Timeout is enforced via reqCtx (connect) and the idle body
		// reader below (between reads), not here - a hard client-wide
		// timeout would kill long-lived streaming responses.
	}

	resp, err := client.Do(req)
	if err != nil {
		idleTimer.Stop()
		timedOut := ctx.Err() == nil && reqCtx.Err() != nil
		cancel()
		if timedOut {
			return nil, domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("upstream call exceeded %s: %w", timeout, err))
		}
		return nil, classifyTransportError(err, timeout)
	}

	resp.Body = &idleTimeoutBody{rc: resp.Body, timer: idleTimer, timeout: timeout, cancel: cancel, parent: ctx}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		limited := io.LimitReader(resp.Body, 64*1024)
		snippet, _ := io.ReadAll(limited)
		return nil, domain.NewKindedError(domain.ErrUpstreamHTTPError, &HTTPError{StatusCode: resp.StatusCode, Body: snippet})
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// NewMalformedError wraps a body-parsing failure (truncated JSON,
// non-SSE bytes on an SSE stream) as UPSTREAM_MALFORMED for callers
// reading a Response's Body.
func NewMalformedError(err error) error {
	return domain.NewKindedError(domain.ErrUpstreamMalformed, err)
}

func newBodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return &staticBody{data: body}
}

type staticBody struct {
	data []byte
	pos  int
}

func (b *staticBody) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

// idleTimeoutBody resets a timer on every successful read and cancels
// the request's context if timeout elapses between reads, enforcing an
// idle-read ceiling distinct from a hard end-to-end deadline.
type idleTimeoutBody struct {
	rc      io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	cancel  context.CancelFunc
	parent  context.Context
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if b.timeout > 0 {
		b.timer.Reset(b.timeout)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && b.parent.Err() == nil {
			return n, domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("upstream idle for more than %s: %w", b.timeout, err))
		}
		return n, classifyReadError(err)
	}
	return n, nil
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	b.cancel()
	return b.rc.Close()
}

func classifyReadError(err error) error {
	if errors.Is(err, io.EOF) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewKindedError(domain.ErrClientDisconnect, err)
	}
	return domain.NewKindedError(domain.ErrUpstreamTransport, err)
}

// classifyTransportError turns a RoundTrip failure into an
// UPSTREAM_TRANSPORT kinded error, distinguishing connection-refused,
// DNS failure, and deadline exceeded for logging purposes without
// leaking net.OpError internals up through the proxy.
func classifyTransportError(err error, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewKindedError(domain.ErrUpstreamTransport,
			fmt.Errorf("upstream call exceeded %s: %w", timeout, err))
	case errors.Is(err, context.Canceled):
		return domain.NewKindedError(domain.ErrClientDisconnect, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("network timeout: %w", err))
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("%s failed: %w", opErr.Op, err))
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("connection refused: %w", err))
		case syscall.ECONNRESET:
			return domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("connection reset: %w", err))
		}
	}

	return domain.NewKindedError(domain.ErrUpstreamTransport, err)
}
