package healthprobe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/ledger"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/internal/upstream"
)

func newTestProber(t *testing.T, baseURL string) *Prober {
	t.Helper()
	doc := configstore.Document{
		Providers: []configstore.ProviderEntry{
			{Name: "p1", Provider: domain.Provider{Name: "p1", BaseURL: baseURL, Limits: domain.Limits{RPM: domain.Limit(10)}}},
		},
		Models: []configstore.ModelEntry{
			{Model: "gpt-4o", Bindings: []configstore.BindingEntry{
				{Provider: "p1", Binding: domain.Binding{Provider: "p1", Enable: true, Alias: "gpt4o-mini"}},
			}},
		},
	}
	require.NoError(t, configstore.Validate(doc))
	store := configstore.New("", doc)
	return New(store, ratelimit.NewManager(), upstream.New(), ledger.New(10))
}

func TestProbe_SuccessRecordsLatencyAndCommitsQuota(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p := newTestProber(t, srv.URL)

	result, err := p.Probe(context.Background(), "gpt-4o", "p1")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "gpt4o-mini", gotModel, "the probe must resolve the alias like any other call")
	assert.GreaterOrEqual(t, result.LatencyMS, int64(0))

	results := p.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].Provider)
}

func TestProbe_FailureRollsBackReservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestProber(t, srv.URL)

	result, err := p.Probe(context.Background(), "gpt-4o", "p1")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)

	assert.Equal(t, 0, p.limiter.Status("p1").RPMUsed, "a failed probe must not hold its reservation")
}

func TestProbe_UnknownBindingReturnsError(t *testing.T) {
	p := newTestProber(t, "https://unused.test")
	_, err := p.Probe(context.Background(), "gpt-4o", "nonexistent")
	require.Error(t, err)
}

func TestProbeAll_CoversEveryBinding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p := newTestProber(t, srv.URL)
	results := p.ProbeAll(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
}
