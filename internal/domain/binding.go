package domain

// AutoModel is the special logical model name that matches any enabled
// binding across the whole document, in declaration order.
const AutoModel = "auto"

// Binding is a (logical model, provider) pair. Alias is the provider-local
// model name to send upstream; empty means forward the logical name
// unchanged. Enable=false excludes the binding from selection but keeps
// its rate-limiter counters intact.
type Binding struct {
	Provider string `yaml:"-" json:"provider"`
	Alias    string `yaml:"alias,omitempty" json:"alias,omitempty"`
	Enable   bool   `yaml:"enable" json:"enable"`
}

// ResolveUpstreamModel returns Alias if set, otherwise the logical model
// name passed by the caller.
func (b Binding) ResolveUpstreamModel(logicalModel string) string {
	if b.Alias != "" {
		return b.Alias
	}
	return logicalModel
}
