package configstore

import "fmt"

// Validate checks the invariants called out in the routing spec: every
// binding resolves to a known provider, every limit is non-negative, and
// every base_url is well formed. It never mutates d.
func Validate(d Document) error {
	seenProviders := make(map[string]struct{}, len(d.Providers))
	for _, p := range d.Providers {
		if _, dup := seenProviders[p.Name]; dup {
			return fmt.Errorf("configstore: provider %q declared more than once", p.Name)
		}
		seenProviders[p.Name] = struct{}{}
		if err := p.Provider.Validate(); err != nil {
			return err
		}
	}

	known := d.providerSet()
	seenModels := make(map[string]struct{}, len(d.Models))
	for _, m := range d.Models {
		if _, dup := seenModels[m.Model]; dup {
			return fmt.Errorf("configstore: model %q declared more than once", m.Model)
		}
		seenModels[m.Model] = struct{}{}

		seenBindingProvider := make(map[string]struct{}, len(m.Bindings))
		for _, be := range m.Bindings {
			if _, ok := known[be.Provider]; !ok {
				return fmt.Errorf("configstore: model %q: binding references unknown provider %q", m.Model, be.Provider)
			}
			if _, dup := seenBindingProvider[be.Provider]; dup {
				return fmt.Errorf("configstore: model %q: provider %q bound more than once", m.Model, be.Provider)
			}
			seenBindingProvider[be.Provider] = struct{}{}
		}
	}
	return nil
}
