package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrey/llm-gateway/internal/domain"
)

func TestCall_InjectsBearerTokenAndJoinsPath(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New()
	provider := domain.Provider{Name: "p1", BaseURL: srv.URL + "/v1", APIKey: "secret-key"}

	resp, err := c.Call(context.Background(), provider, "/chat/completions", nil, []byte(`{}`), false)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCall_NonTwoXXReturnsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := New()
	provider := domain.Provider{Name: "p1", BaseURL: srv.URL}

	_, err := c.Call(context.Background(), provider, "/v1/chat", nil, nil, false)
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstreamHTTPError, domain.KindOf(err))

	var httpErr *HTTPError
	require.True(t, asHTTPError(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestCall_ConnectionRefusedIsTransportError(t *testing.T) {
	c := New()
	provider := domain.Provider{Name: "p1", BaseURL: "http://127.0.0.1:1"}

	_, err := c.Call(context.Background(), provider, "/v1/chat", nil, nil, false)
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstreamTransport, domain.KindOf(err))
}

func TestCall_TimeoutSurfacesAsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	provider := domain.Provider{
		Name:    "p1",
		BaseURL: srv.URL,
		Timeout: domain.DurationField(5 * time.Millisecond),
	}

	_, err := c.Call(context.Background(), provider, "/v1/chat", nil, nil, false)
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstreamTransport, domain.KindOf(err))
}

func TestCall_StreamingBodyEnforcesIdleTimeoutBetweenChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: first\n\n"))
		flusher.Flush()
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("data: second\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	c := New()
	provider := domain.Provider{
		Name:    "p1",
		BaseURL: srv.URL,
		Timeout: domain.DurationField(10 * time.Millisecond),
	}

	resp, err := c.Call(context.Background(), provider, "/v1/chat", nil, nil, true)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "first")

	_, err = resp.Body.Read(buf)
	require.Error(t, err, "the idle gap before the second chunk must trip the timeout")
	assert.Equal(t, domain.ErrUpstreamTransport, domain.KindOf(err))
}

func asHTTPError(err error, target **HTTPError) bool {
	for err != nil {
		if he, ok := err.(*HTTPError); ok {
			*target = he
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

var _ io.ReadCloser = (*idleTimeoutBody)(nil)
