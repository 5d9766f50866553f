package ratelimit

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/newrey/llm-gateway/internal/domain"
)

// Manager is the provider-name-keyed registry of Limiters. Backed by
// xsync.Map for lock-free reads on the hot request path - the same
// concurrent map type the gateway's event bus uses internally - since a
// Go map guarded by a single mutex would serialise every reserve/check
// across unrelated providers.
type Manager struct {
	limiters *xsync.Map[string, *Limiter]
}

// NewManager builds an empty registry.
func NewManager() *Manager {
	return &Manager{limiters: xsync.NewMap[string, *Limiter]()}
}

// Sync reconciles the registry against the current routing document:
// new providers get a fresh Limiter, known providers have their limits
// updated in place (preserving accumulated counters), and providers no
// longer present are dropped. Intended as a configstore.Store.OnChange
// callback.
func (m *Manager) Sync(providers []domain.Provider) {
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		seen[p.Name] = struct{}{}
		if existing, ok := m.limiters.Load(p.Name); ok {
			existing.SetLimits(p.Limits)
			continue
		}
		m.limiters.Store(p.Name, New(p.Limits))
	}

	m.limiters.Range(func(name string, _ *Limiter) bool {
		if _, ok := seen[name]; !ok {
			m.limiters.Delete(name)
		}
		return true
	})
}

// For returns (and lazily creates) the Limiter for a provider name. Used
// on the request path where the provider is already known to exist in
// the config snapshot, so lazy creation is just a safety net.
func (m *Manager) For(provider string) *Limiter {
	l, _ := m.limiters.LoadOrStore(provider, New(domain.Limits{}))
	return l
}

// Check runs For(provider).Check and stamps the provider name onto
// nothing - callers needing deny reasons per provider call this directly
// during selection (§4.4), separate from the reserve/commit path.
func (m *Manager) Check(provider string, tokensHint int) CheckResult {
	return m.For(provider).Check(tokensHint)
}

// Reserve reserves against provider and returns a ticket carrying the
// provider name, so the caller doesn't need to track it separately
// through the failover loop.
func (m *Manager) Reserve(provider string) Ticket {
	ticket := m.For(provider).Reserve()
	ticket.Provider = provider
	return ticket
}

// Commit books tokens against the ticket's provider.
func (m *Manager) Commit(ticket Ticket, tokens int) error {
	return m.For(ticket.Provider).Commit(ticket, tokens)
}

// Rollback releases the ticket's provider reservation.
func (m *Manager) Rollback(ticket Ticket) error {
	return m.For(ticket.Provider).Rollback(ticket)
}

// Reset empties one provider's buckets.
func (m *Manager) Reset(provider string) {
	m.For(provider).Reset()
}

// Status reports one provider's current usage.
func (m *Manager) Status(provider string) Status {
	return m.For(provider).StatusNow()
}
