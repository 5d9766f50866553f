package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/healthprobe"
	"github.com/newrey/llm-gateway/internal/ledger"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/internal/upstream"
)

func newTestAPI(t *testing.T, baseURL string) *API {
	t.Helper()
	doc := configstore.Document{
		Providers: []configstore.ProviderEntry{
			{Name: "p1", Provider: domain.Provider{Name: "p1", BaseURL: baseURL, Limits: domain.Limits{RPM: domain.Limit(10)}}},
		},
		Models: []configstore.ModelEntry{
			{Model: "gpt-4o", Bindings: []configstore.BindingEntry{
				{Provider: "p1", Binding: domain.Binding{Provider: "p1", Enable: true}},
			}},
		},
	}
	require.NoError(t, configstore.Validate(doc))
	store := configstore.New("", doc)
	mgr := ratelimit.NewManager()
	led := ledger.New(10)
	prober := healthprobe.New(store, mgr, upstream.New(), led)
	return New(store, mgr, led, prober)
}

func TestToggleBinding_RoundTrips(t *testing.T) {
	api := newTestAPI(t, "https://unused.test")
	require.NoError(t, api.ToggleBinding("gpt-4o", "p1", false))

	bindings := api.Bindings()
	require.Len(t, bindings, 1)
	assert.False(t, bindings[0].Enable)
}

func TestSetAlias_RoundTrips(t *testing.T) {
	api := newTestAPI(t, "https://unused.test")
	require.NoError(t, api.SetAlias("gpt-4o", "p1", "gpt4o-mini"))

	bindings := api.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "gpt4o-mini", bindings[0].Alias)
}

func TestResetCounters_ZeroesUsage(t *testing.T) {
	api := newTestAPI(t, "https://unused.test")
	api.Limiter.Reserve("p1")
	require.Equal(t, 1, api.Limiter.Status("p1").RPMUsed)

	api.ResetCounters("p1")
	assert.Equal(t, 0, api.Limiter.Status("p1").RPMUsed)
}

func TestUsage_ReflectsLedgerAppends(t *testing.T) {
	api := newTestAPI(t, "https://unused.test")
	api.Ledger.Append(domain.UsageRecord{Provider: "p1", Status: "ok", TotalTokens: 10})

	summary := api.Usage()
	require.Len(t, summary, 1)
	assert.EqualValues(t, 10, summary[0].TotalTokens)
}

func TestProbeOne_RecordsHealthVisibleInBindings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := newTestAPI(t, srv.URL)
	result, err := api.ProbeOne(context.Background(), "gpt-4o", "p1")
	require.NoError(t, err)
	assert.True(t, result.OK)

	bindings := api.Bindings()
	require.Len(t, bindings, 1)
	require.NotNil(t, bindings[0].Health)
	assert.True(t, bindings[0].Health.OK)
}

func TestReplaceDocument_ResyncsLimiter(t *testing.T) {
	api := newTestAPI(t, "https://unused.test")
	next := api.Document().Clone()
	next.Providers = append(next.Providers, configstore.ProviderEntry{
		Name: "p2", Provider: domain.Provider{Name: "p2", BaseURL: "https://p2.test", Limits: domain.Limits{RPM: domain.Limit(5)}},
	})

	require.NoError(t, api.ReplaceDocument(next))
	assert.Equal(t, 0, api.Limiter.Status("p2").RPMUsed)
}
