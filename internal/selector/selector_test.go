package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/ratelimit"
)

func newTestStore(t *testing.T) *configstore.Store {
	t.Helper()
	doc := configstore.Document{
		Providers: []configstore.ProviderEntry{
			{Name: "p1", Provider: domain.Provider{Name: "p1", BaseURL: "https://p1.test/v1"}},
			{Name: "p2", Provider: domain.Provider{Name: "p2", BaseURL: "https://p2.test/v1"}},
		},
		Models: []configstore.ModelEntry{
			{Model: "gpt-4o", Bindings: []configstore.BindingEntry{
				{Provider: "p1", Binding: domain.Binding{Provider: "p1", Enable: true}},
				{Provider: "p2", Binding: domain.Binding{Provider: "p2", Enable: true, Alias: "gpt4o-mini"}},
			}},
		},
	}
	require.NoError(t, configstore.Validate(doc))
	return configstore.New("", doc)
}

func TestSelect_OrdersByDeclarationOrder(t *testing.T) {
	store := newTestStore(t)
	sel := New(store, ratelimit.NewManager())

	candidates, err := sel.Select("gpt-4o", ratelimit.NoTokensHint)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "p1", candidates[0].Provider)
	assert.Equal(t, "gpt-4o", candidates[0].UpstreamModel)
	assert.Equal(t, "p2", candidates[1].Provider)
	assert.Equal(t, "gpt4o-mini", candidates[1].UpstreamModel)
}

func TestSelect_SkipsDisabledBindings(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpdateBinding("gpt-4o", "p1", "enable", "false"))

	sel := New(store, ratelimit.NewManager())
	candidates, err := sel.Select("gpt-4o", ratelimit.NoTokensHint)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "p2", candidates[0].Provider)
}

func TestSelect_EmptyWhenQuotaExhausted(t *testing.T) {
	store := configstore.New("", configstore.Document{
		Providers: []configstore.ProviderEntry{
			{Name: "p1", Provider: domain.Provider{Name: "p1", BaseURL: "https://p1.test/v1", Limits: domain.Limits{RPM: domain.Limit(1)}}},
		},
		Models: []configstore.ModelEntry{
			{Model: "gpt-4o", Bindings: []configstore.BindingEntry{
				{Provider: "p1", Binding: domain.Binding{Provider: "p1", Enable: true}},
			}},
		},
	})

	mgr := ratelimit.NewManager()
	mgr.Sync([]domain.Provider{store.Snapshot().Providers[0].Provider})
	mgr.Reserve("p1") // saturate rpm=1

	sel := New(store, mgr)
	_, err := sel.Select("gpt-4o", ratelimit.NoTokensHint)
	require.Error(t, err)
	assert.Equal(t, domain.ErrNoProviderAvailable, domain.KindOf(err))

	var npe *NoProviderError
	require.True(t, errors.As(err, &npe))
	assert.Equal(t, "rpm", npe.Reasons["p1"])
}

func TestSelect_AutoUnionsAllEnabledModelsInOrder(t *testing.T) {
	store := configstore.New("", configstore.Document{
		Providers: []configstore.ProviderEntry{
			{Name: "p1", Provider: domain.Provider{Name: "p1", BaseURL: "https://p1.test/v1"}},
		},
		Models: []configstore.ModelEntry{
			{Model: "model-a", Bindings: []configstore.BindingEntry{
				{Provider: "p1", Binding: domain.Binding{Provider: "p1", Enable: true}},
			}},
			{Model: "model-b", Bindings: []configstore.BindingEntry{
				{Provider: "p1", Binding: domain.Binding{Provider: "p1", Enable: true}},
			}},
		},
	})

	sel := New(store, ratelimit.NewManager())
	candidates, err := sel.Select(domain.AutoModel, ratelimit.NoTokensHint)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "model-a", candidates[0].UpstreamModel)
	assert.Equal(t, "model-b", candidates[1].UpstreamModel)
}
