package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/util"
)

// Store holds the live routing document behind a copy-on-write pointer.
// snapshot() readers capture the current *Document reference and use it
// for the whole request; replace() publishes a new one. A write-mutex
// serialises mutators so two concurrent admin edits don't race each
// other's read-modify-write cycle, but never blocks a reader.
type Store struct {
	live     atomic.Pointer[Document]
	path     string
	writeMu  sync.Mutex
	watchers []func(Document)
}

// New constructs a Store from an already-validated document, persisted at
// path. Use Load to read one from disk.
func New(path string, doc Document) *Store {
	s := &Store{path: path}
	s.live.Store(&doc)
	return s
}

// Load reads and validates the routing document at path.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configstore: reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, domain.NewKindedError(domain.ErrConfigInvalid, fmt.Errorf("configstore: parsing %s: %w", path, err))
	}
	if err := Validate(doc); err != nil {
		return nil, domain.NewKindedError(domain.ErrConfigInvalid, err)
	}
	return New(path, doc), nil
}

// Snapshot returns the current immutable document. Safe to hold across a
// whole request; later replace() calls do not affect it.
func (s *Store) Snapshot() Document {
	return *s.live.Load()
}

// OnChange registers a callback invoked, in-process, after every
// successful replace. Used to let the Rate Limiter registry know the
// provider set may have changed.
func (s *Store) OnChange(fn func(Document)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Replace validates next, then atomically swaps the live view and
// persists it to disk via write-to-temp + rename. A validation failure or
// disk write failure leaves the live view and the file untouched.
func (s *Store) Replace(next Document) error {
	if err := Validate(next); err != nil {
		return domain.NewKindedError(domain.ErrConfigInvalid, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist(next); err != nil {
		return domain.NewKindedError(domain.ErrConfigInvalid, fmt.Errorf("configstore: persisting: %w", err))
	}

	s.live.Store(&next)
	for _, fn := range s.watchers {
		fn(next)
	}
	return nil
}

// persist writes next to a temp file in the same directory then renames
// it over s.path, so a crash mid-write never corrupts the live file.
func (s *Store) persist(next Document) error {
	if s.path == "" {
		return nil // in-memory only, e.g. under test
	}
	out, err := yaml.Marshal(next)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".configstore-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// mutate applies fn to a clone of the current document and replaces the
// live view with the result, so every fine-grained edit goes through the
// same validate + atomic-swap path as Replace.
func (s *Store) mutate(fn func(*Document) error) error {
	current := s.Snapshot()
	next := current.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	return s.Replace(next)
}

// UpdateBinding edits one field ("alias" or "enable") of a single
// (model, provider) binding.
func (s *Store) UpdateBinding(model, provider, field, value string) error {
	return s.mutate(func(d *Document) error {
		for mi := range d.Models {
			if d.Models[mi].Model != model {
				continue
			}
			for bi := range d.Models[mi].Bindings {
				be := &d.Models[mi].Bindings[bi]
				if be.Provider != provider {
					continue
				}
				switch field {
				case "alias":
					be.Binding.Alias = value
				case "enable":
					be.Binding.Enable = value == "true"
				default:
					return fmt.Errorf("configstore: unknown binding field %q", field)
				}
				return nil
			}
			return fmt.Errorf("configstore: model %q has no binding for provider %q", model, provider)
		}
		return fmt.Errorf("configstore: unknown model %q", model)
	})
}

// UpdateLimit edits one limit field ("rpm", "tpm", "rpd", "tpr") for a
// provider.
func (s *Store) UpdateLimit(provider, field string, value int) error {
	return s.mutate(func(d *Document) error {
		for i := range d.Providers {
			if d.Providers[i].Name != provider {
				continue
			}
			l := &d.Providers[i].Provider.Limits
			switch field {
			case "rpm":
				l.RPM = &value
			case "tpm":
				l.TPM = &value
			case "rpd":
				l.RPD = &value
			case "tpr":
				l.TPR = &value
			default:
				return fmt.Errorf("configstore: unknown limit field %q", field)
			}
			return nil
		}
		return fmt.Errorf("configstore: unknown provider %q", provider)
	})
}

// SetKey edits a provider's base_url or api_key.
func (s *Store) SetKey(provider, field, value string) error {
	return s.mutate(func(d *Document) error {
		for i := range d.Providers {
			if d.Providers[i].Name != provider {
				continue
			}
			switch field {
			case "api_key":
				d.Providers[i].Provider.APIKey = value
			case "base_url":
				d.Providers[i].Provider.BaseURL = util.NormaliseBaseURL(value)
			default:
				return fmt.Errorf("configstore: unknown provider field %q", field)
			}
			return nil
		}
		return fmt.Errorf("configstore: unknown provider %q", provider)
	})
}
