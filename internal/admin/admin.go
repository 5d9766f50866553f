// Package admin implements the Admin API (C7): read/write operations
// backing the static admin page. Every mutation flows through
// internal/configstore's validated mutators; this package adds nothing
// of its own beyond shaping the responses the admin page and /api_usage
// consume.
package admin

import (
	"context"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/healthprobe"
	"github.com/newrey/llm-gateway/internal/ledger"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/pkg/format"
)

// BindingView is one (model, provider) row as the admin page renders it:
// the routing fields plus live quota usage and last health result.
type BindingView struct {
	Model              string               `json:"model"`
	Provider           string               `json:"provider"`
	Alias              string               `json:"alias,omitempty"`
	Enable             bool                 `json:"enable"`
	Limits             domain.Limits        `json:"limits"`
	Status             ratelimit.Status     `json:"status"`
	Health             *domain.HealthResult `json:"health,omitempty"`
	LatencyDisplay     string               `json:"latency_display,omitempty"`
	LastCheckedDisplay string               `json:"last_checked_display,omitempty"`
}

// API wires the admin surface over the live Store, Manager, Ledger and
// Prober. It holds no state of its own.
type API struct {
	Store   *configstore.Store
	Limiter *ratelimit.Manager
	Ledger  *ledger.Ledger
	Prober  *healthprobe.Prober
}

// New builds an API over the given components.
func New(store *configstore.Store, limiter *ratelimit.Manager, led *ledger.Ledger, prober *healthprobe.Prober) *API {
	return &API{Store: store, Limiter: limiter, Ledger: led, Prober: prober}
}

// Document returns the live routing document for GET /admin/config.
func (a *API) Document() configstore.Document {
	return a.Store.Snapshot()
}

// ReplaceDocument validates and swaps in a whole new routing document for
// POST /admin/config, then re-syncs the rate limiter registry so newly
// added or removed providers take effect immediately.
func (a *API) ReplaceDocument(next configstore.Document) error {
	if err := a.Store.Replace(next); err != nil {
		return err
	}
	a.Limiter.Sync(providersOf(next))
	return nil
}

// Bindings returns every (model, provider) binding in declaration order,
// annotated with live quota status and the last health result.
func (a *API) Bindings() []BindingView {
	doc := a.Store.Snapshot()
	healthByKey := make(map[domain.HealthKey]domain.HealthResult)
	for _, h := range a.Prober.Results() {
		healthByKey[domain.HealthKey{Model: h.Model, Provider: h.Provider}] = h
	}

	var out []BindingView
	for _, entry := range doc.Models {
		for _, be := range entry.Bindings {
			provider, _ := doc.FindProvider(be.Provider)
			view := BindingView{
				Model:    entry.Model,
				Provider: be.Provider,
				Alias:    be.Binding.Alias,
				Enable:   be.Binding.Enable,
				Limits:   provider.Limits,
				Status:   a.Limiter.Status(be.Provider),
			}
			if h, ok := healthByKey[domain.HealthKey{Model: entry.Model, Provider: be.Provider}]; ok {
				hv := h
				view.Health = &hv
				view.LatencyDisplay = format.Latency(hv.LatencyMS)
				view.LastCheckedDisplay = format.TimeAgo(hv.LastChecked)
			}
			out = append(out, view)
		}
	}
	return out
}

// ToggleBinding enables or disables one (model, provider) binding.
func (a *API) ToggleBinding(model, provider string, enable bool) error {
	value := "false"
	if enable {
		value = "true"
	}
	return a.Store.UpdateBinding(model, provider, "enable", value)
}

// SetAlias rewrites the provider-local model name for one binding.
func (a *API) SetAlias(model, provider, alias string) error {
	return a.Store.UpdateBinding(model, provider, "alias", alias)
}

// SetLimit edits one of a provider's rpm/tpm/rpd/tpr ceilings.
func (a *API) SetLimit(provider, field string, value int) error {
	return a.Store.UpdateLimit(provider, field, value)
}

// SetCredentials edits a provider's base_url or api_key.
func (a *API) SetCredentials(provider, field, value string) error {
	return a.Store.SetKey(provider, field, value)
}

// ResetCounters clears one provider's rate-limiter buckets.
func (a *API) ResetCounters(provider string) {
	a.Limiter.Reset(provider)
}

// Usage returns the rolling per-provider summary for GET /api_usage.
func (a *API) Usage() []domain.ProviderSummary {
	return a.Ledger.SummaryByProvider()
}

// RecentUsage returns the n most recent usage records, newest first.
func (a *API) RecentUsage(n int) []domain.UsageRecord {
	return a.Ledger.Recent(n)
}

// ProbeOne triggers a health probe for a single (model, provider) pair.
func (a *API) ProbeOne(ctx context.Context, model, provider string) (domain.HealthResult, error) {
	return a.Prober.Probe(ctx, model, provider)
}

// ProbeAll triggers a health probe for every binding, returning the
// full matrix afterward.
func (a *API) ProbeAll(ctx context.Context) []domain.HealthResult {
	return a.Prober.ProbeAll(ctx)
}

func providersOf(doc configstore.Document) []domain.Provider {
	out := make([]domain.Provider, 0, len(doc.Providers))
	for _, p := range doc.Providers {
		out = append(out, p.Provider)
	}
	return out
}
