// Package domain holds the shared types routed between the gateway's
// components: providers, bindings, counters, usage records and health
// results. None of these types carry behaviour beyond small invariants -
// the components in internal/configstore, internal/ratelimit and friends
// own the logic that operates on them.
package domain

import (
	"fmt"
	"net/url"
)

// Limits are the per-provider sliding-window ceilings. An absent (nil)
// field means unbounded for that dimension; an explicitly configured
// zero is a distinct, meaningful ceiling of zero, i.e. deny every
// request along that dimension. Pointers are what make that distinction
// representable at all - a bare int can't tell "rpm: 0" in the document
// apart from "rpm" never having been set.
type Limits struct {
	RPM *int `yaml:"rpm,omitempty" json:"rpm,omitempty"`
	TPM *int `yaml:"tpm,omitempty" json:"tpm,omitempty"`
	RPD *int `yaml:"rpd,omitempty" json:"rpd,omitempty"`
	TPR *int `yaml:"tpr,omitempty" json:"tpr,omitempty"`
}

// HasRPM reports whether the requests-per-minute ceiling is configured.
func (l Limits) HasRPM() bool { return l.RPM != nil }

// HasTPM reports whether the tokens-per-minute ceiling is configured.
func (l Limits) HasTPM() bool { return l.TPM != nil }

// HasRPD reports whether the requests-per-day ceiling is configured.
func (l Limits) HasRPD() bool { return l.RPD != nil }

// HasTPR reports whether the per-request token ceiling is configured.
func (l Limits) HasTPR() bool { return l.TPR != nil }

// Limit returns a pointer to n, for constructing a configured (possibly
// zero) Limits field from a literal.
func Limit(n int) *int { return &n }

// Provider is an upstream LLM API endpoint with its own credentials and
// quotas, identified by Name which must be unique across a Document.
type Provider struct {
	Name    string        `yaml:"-" json:"name"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"api_key,omitempty"`
	Limits  Limits        `yaml:"limits,omitempty" json:"limits,omitempty"`
	Timeout DurationField `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// EffectiveTimeout returns the configured per-provider timeout or the
// supplied default when unset.
func (p Provider) EffectiveTimeout(def DurationField) DurationField {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return def
}

// Validate checks the provider's own fields; it does not check binding
// references, which is the Document's job since those span providers.
func (p Provider) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name must not be empty")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider %q: base_url %q is not a well-formed absolute URL", p.Name, p.BaseURL)
	}
	for _, v := range []*int{p.Limits.RPM, p.Limits.TPM, p.Limits.RPD, p.Limits.TPR} {
		if v != nil && *v < 0 {
			return fmt.Errorf("provider %q: limits must be non-negative", p.Name)
		}
	}
	return nil
}
