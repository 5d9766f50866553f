// Package healthprobe implements the Health Prober (C8): for each
// (model, provider) binding, issues a minimal one-message chat call
// with max_tokens=1 along the same reserve/call/commit path the Proxy
// Engine uses, but against a single fixed target - no failover, no
// Selector eligibility filtering beyond "does this binding still
// exist." The probe counts against the provider's quota like any other
// request; it is not a side channel.
package healthprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/ledger"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/internal/upstream"
	"github.com/newrey/llm-gateway/pkg/eventbus"
)

const probeMaxTokens = 1

// Prober issues probes and holds the last-known health matrix. The
// matrix is a lock-free map keyed by domain.HealthKey; each probe
// overwrites its own key's entry, readers observe any committed value.
type Prober struct {
	store   *configstore.Store
	limiter *ratelimit.Manager
	client  *upstream.Client
	ledger  *ledger.Ledger
	results *xsync.Map[domain.HealthKey, domain.HealthResult]
	events  *eventbus.EventBus[domain.HealthResult]
	now     func() time.Time
}

// New builds a Prober over the given components.
func New(store *configstore.Store, limiter *ratelimit.Manager, client *upstream.Client, led *ledger.Ledger) *Prober {
	return &Prober{
		store:   store,
		limiter: limiter,
		client:  client,
		ledger:  led,
		results: xsync.NewMap[domain.HealthKey, domain.HealthResult](),
		events:  eventbus.New[domain.HealthResult](),
		now:     time.Now,
	}
}

// Subscribe returns a channel of health results as they are recorded,
// for the admin page to show live probe outcomes without polling.
func (p *Prober) Subscribe(ctx context.Context) (<-chan domain.HealthResult, func()) {
	return p.events.Subscribe(ctx)
}

// Probe checks one (model, provider) binding and records the outcome.
// Returns an error only when the binding itself doesn't exist; upstream
// failures are recorded in the result, not returned.
func (p *Prober) Probe(ctx context.Context, model, providerName string) (domain.HealthResult, error) {
	doc := p.store.Snapshot()

	entry, ok := doc.FindModel(model)
	if !ok {
		return domain.HealthResult{}, fmt.Errorf("healthprobe: unknown model %q", model)
	}
	var upstreamModel string
	var found bool
	for _, be := range entry.Bindings {
		if be.Provider == providerName {
			upstreamModel = be.Binding.ResolveUpstreamModel(entry.Model)
			found = true
			break
		}
	}
	if !found {
		return domain.HealthResult{}, fmt.Errorf("healthprobe: model %q has no binding for provider %q", model, providerName)
	}

	provider, ok := doc.FindProvider(providerName)
	if !ok {
		return domain.HealthResult{}, fmt.Errorf("healthprobe: unknown provider %q", providerName)
	}

	result := p.probeOne(ctx, model, upstreamModel, provider)
	p.results.Store(domain.HealthKey{Model: model, Provider: providerName}, result)
	p.events.Publish(result)
	return result, nil
}

// ProbeAll probes every binding, enabled or not, in declaration order, returning
// the set of results it recorded.
func (p *Prober) ProbeAll(ctx context.Context) []domain.HealthResult {
	doc := p.store.Snapshot()

	var out []domain.HealthResult
	for _, entry := range doc.Models {
		for _, be := range entry.Bindings {
			provider, ok := doc.FindProvider(be.Provider)
			if !ok {
				continue
			}
			upstreamModel := be.Binding.ResolveUpstreamModel(entry.Model)
			result := p.probeOne(ctx, entry.Model, upstreamModel, provider)
			p.results.Store(domain.HealthKey{Model: entry.Model, Provider: be.Provider}, result)
			p.events.Publish(result)
			out = append(out, result)
		}
	}
	return out
}

// Results returns the current health matrix, unordered; callers that
// need declaration order should pair this with a configstore snapshot.
func (p *Prober) Results() []domain.HealthResult {
	var out []domain.HealthResult
	p.results.Range(func(_ domain.HealthKey, v domain.HealthResult) bool {
		out = append(out, v)
		return true
	})
	return out
}

func (p *Prober) probeOne(ctx context.Context, model, upstreamModel string, provider domain.Provider) domain.HealthResult {
	started := p.now()
	rec := domain.UsageRecord{Model: model, Provider: provider.Name, StartedAt: started}

	body := []byte(fmt.Sprintf(`{"model":%q,"messages":[{"role":"user","content":"ping"}],"max_tokens":1}`, upstreamModel))

	ticket := p.limiter.Reserve(provider.Name)

	resp, err := p.client.Call(ctx, provider, "/chat/completions", nil, body, false)
	if err != nil {
		_ = p.limiter.Rollback(ticket)
		return p.fail(model, provider.Name, started, err, rec)
	}
	defer resp.Body.Close()

	_ = p.limiter.Commit(ticket, probeMaxTokens)
	ended := p.now()

	rec.EndedAt = ended
	rec.TotalTokens = probeMaxTokens
	rec.Status = "ok"
	p.ledger.Append(rec)

	return domain.HealthResult{
		Model:       model,
		Provider:    provider.Name,
		LastChecked: ended,
		OK:          true,
		LatencyMS:   ended.Sub(started).Milliseconds(),
	}
}

func (p *Prober) fail(model, provider string, started time.Time, err error, rec domain.UsageRecord) domain.HealthResult {
	ended := p.now()
	rec.EndedAt = ended
	rec.Status = string(domain.KindOf(err))
	rec.Error = err.Error()
	p.ledger.Append(rec)

	return domain.HealthResult{
		Model:       model,
		Provider:    provider,
		LastChecked: ended,
		OK:          false,
		LatencyMS:   ended.Sub(started).Milliseconds(),
		Error:       err.Error(),
	}
}
