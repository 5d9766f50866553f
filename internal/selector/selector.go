// Package selector implements the Selector (C4): given a logical model
// and a token hint, produces the ordered, eligibility-filtered list of
// candidate (provider, upstream_model) pairs the Proxy Engine fails over
// across. Configuration order is authoritative - no randomisation, no
// least-loaded reordering - so operators get deterministic routing by
// listing providers in preference order.
package selector

import (
	"fmt"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/ratelimit"
)

// Candidate is one eligible provider for a request, with the model name
// already resolved to whatever the provider expects.
type Candidate struct {
	Provider      string
	UpstreamModel string
}

// NoProviderError carries a per-provider deny-reason breakdown for
// diagnostics when Select finds nothing eligible.
type NoProviderError struct {
	Model   string
	Reasons map[string]string
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("selector: no provider available for model %q", e.Model)
}

// Selector resolves logical models to candidate providers against a live
// configstore snapshot and rate-limiter state.
type Selector struct {
	store   *configstore.Store
	limiter *ratelimit.Manager
}

// New builds a Selector over store and limiter.
func New(store *configstore.Store, limiter *ratelimit.Manager) *Selector {
	return &Selector{store: store, limiter: limiter}
}

// Select returns the ordered candidate list for model, given tokensHint
// (the request's max_tokens or a token estimate; ratelimit.NoTokensHint
// skips the tpm and tpr checks).
// Returns a *NoProviderError (wrapped as domain.ErrNoProviderAvailable)
// when no binding survives filtering.
func (s *Selector) Select(model string, tokensHint int) ([]Candidate, error) {
	doc := s.store.Snapshot()

	var entries []configstore.ModelEntry
	if model == domain.AutoModel {
		entries = doc.Models
	} else {
		entry, ok := doc.FindModel(model)
		if !ok {
			return nil, domain.NewKindedError(domain.ErrNoProviderAvailable, &NoProviderError{
				Model:   model,
				Reasons: map[string]string{},
			})
		}
		entries = []configstore.ModelEntry{entry}
	}

	var candidates []Candidate
	reasons := make(map[string]string)

	for _, entry := range entries {
		for _, be := range entry.Bindings {
			if !be.Binding.Enable {
				reasons[be.Provider] = "disabled"
				continue
			}
			check := s.limiter.Check(be.Provider, tokensHint)
			if !check.OK {
				reasons[be.Provider] = check.DenyReason
				continue
			}
			candidates = append(candidates, Candidate{
				Provider:      be.Provider,
				UpstreamModel: be.Binding.ResolveUpstreamModel(entry.Model),
			})
		}
	}

	if len(candidates) == 0 {
		return nil, domain.NewKindedError(domain.ErrNoProviderAvailable, &NoProviderError{
			Model:   model,
			Reasons: reasons,
		})
	}
	return candidates, nil
}

// ListModels returns the declared logical model names plus "auto", in
// declaration order, for GET /v1/models.
func (s *Selector) ListModels() []string {
	doc := s.store.Snapshot()
	models := make([]string, 0, len(doc.Models)+1)
	for _, m := range doc.Models {
		models = append(models, m.Model)
	}
	models = append(models, domain.AutoModel)
	return models
}
