// Package configstore implements the routing document (C1): the
// {api_provider, model_config} structure the Proxy Engine routes against.
// It is YAML-shaped on disk, hot-swappable in memory via copy-on-write
// snapshots, and every mutation goes through validate-then-atomic-swap.
package configstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/util"
)

// ProviderEntry is one api_provider entry, order-preserving.
type ProviderEntry struct {
	Name     string
	Provider domain.Provider
}

// BindingEntry is one provider entry within a model's binding map,
// order-preserving.
type BindingEntry struct {
	Provider string
	Binding  domain.Binding
}

// ModelEntry is one model_config entry, order-preserving.
type ModelEntry struct {
	Model    string
	Bindings []BindingEntry
}

// Document is the full routing document. Declaration order of both
// api_provider and each model's bindings is preserved across decode and
// re-encode, since it is the authoritative ordering the Selector uses
// (§4.4 of the routing spec: configuration order, not randomisation).
type Document struct {
	Providers []ProviderEntry
	Models    []ModelEntry
	// Extra carries unknown top-level keys verbatim so a round trip
	// never silently drops operator-added fields.
	Extra map[string]yaml.Node `yaml:"-"`
}

// rawDocument mirrors Document's YAML shape for generic unmarshalling of
// unknown keys; the ordered fields are decoded separately via yaml.Node.
type rawDocument struct {
	APIProvider yaml.Node `yaml:"api_provider"`
	ModelConfig yaml.Node `yaml:"model_config"`
}

// UnmarshalYAML decodes the document while preserving key order for both
// top-level maps.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("configstore: document root must be a mapping")
	}

	d.Extra = make(map[string]yaml.Node)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]
		switch key.Value {
		case "api_provider":
			providers, err := decodeProviders(val)
			if err != nil {
				return err
			}
			d.Providers = providers
		case "model_config":
			models, err := decodeModels(val)
			if err != nil {
				return err
			}
			d.Models = models
		default:
			d.Extra[key.Value] = *val
		}
	}
	return nil
}

func decodeProviders(node *yaml.Node) ([]ProviderEntry, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("configstore: api_provider must be a mapping")
	}
	entries := make([]ProviderEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var p domain.Provider
		if err := node.Content[i+1].Decode(&p); err != nil {
			return nil, fmt.Errorf("configstore: provider %q: %w", name, err)
		}
		p.Name = name
		p.BaseURL = util.NormaliseBaseURL(p.BaseURL)
		entries = append(entries, ProviderEntry{Name: name, Provider: p})
	}
	return entries, nil
}

func decodeModels(node *yaml.Node) ([]ModelEntry, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("configstore: model_config must be a mapping")
	}
	entries := make([]ModelEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		model := node.Content[i].Value
		bindings, err := decodeBindings(model, node.Content[i+1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, ModelEntry{Model: model, Bindings: bindings})
	}
	return entries, nil
}

func decodeBindings(model string, node *yaml.Node) ([]BindingEntry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("configstore: model %q bindings must be a mapping", model)
	}
	entries := make([]BindingEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		provider := node.Content[i].Value
		var b domain.Binding
		if err := node.Content[i+1].Decode(&b); err != nil {
			return nil, fmt.Errorf("configstore: model %q provider %q: %w", model, provider, err)
		}
		b.Provider = provider
		entries = append(entries, BindingEntry{Provider: provider, Binding: b})
	}
	return entries, nil
}

// MarshalYAML re-encodes the document, preserving declaration order.
func (d Document) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	apiProvider := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range d.Providers {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: entry.Name}
		var valNode yaml.Node
		if err := valNode.Encode(entry.Provider); err != nil {
			return nil, err
		}
		apiProvider.Content = append(apiProvider.Content, keyNode, &valNode)
	}

	modelConfig := &yaml.Node{Kind: yaml.MappingNode}
	for _, model := range d.Models {
		modelKey := &yaml.Node{Kind: yaml.ScalarNode, Value: model.Model}
		bindingsNode := &yaml.Node{Kind: yaml.MappingNode}
		for _, be := range model.Bindings {
			bKey := &yaml.Node{Kind: yaml.ScalarNode, Value: be.Provider}
			var bVal yaml.Node
			if err := bVal.Encode(be.Binding); err != nil {
				return nil, err
			}
			bindingsNode.Content = append(bindingsNode.Content, bKey, &bVal)
		}
		modelConfig.Content = append(modelConfig.Content, modelKey, bindingsNode)
	}

	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "api_provider"}, apiProvider,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "model_config"}, modelConfig,
	)

	for key, val := range d.Extra {
		v := val
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &v)
	}

	return root, nil
}

// MarshalJSON re-encodes the document as the same {api_provider,
// model_config} object GET /admin/config and POST /admin/config accept,
// preserving declaration order the way MarshalYAML does - encoding/json
// has no ordered-map primitive, so the object is assembled by hand
// instead of via a struct field or map[string]T.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"api_provider":{`)
	for i, entry := range d.Providers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(entry.Provider)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"model_config":{`)
	for i, model := range d.Models {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(model.Model)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{`)
		for j, be := range model.Bindings {
			if j > 0 {
				buf.WriteByte(',')
			}
			bKey, err := json.Marshal(be.Provider)
			if err != nil {
				return nil, err
			}
			bVal, err := json.Marshal(be.Binding)
			if err != nil {
				return nil, err
			}
			buf.Write(bKey)
			buf.WriteByte(':')
			buf.Write(bVal)
		}
		buf.WriteByte('}')
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the same {api_provider, model_config} shape
// UnmarshalYAML decodes, walking the object token by token with
// json.Decoder so declaration order survives the round trip; a plain
// map[string]json.RawMessage decode would discard it. Unknown top-level
// keys are accepted and ignored rather than preserved - unlike the YAML
// path's Extra, a JSON request body is only ever the two documented
// keys, never an operator-edited file with stray fields worth keeping.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("configstore: document root must be a JSON object: %w", err)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		switch key {
		case "api_provider":
			providers, err := decodeProvidersJSON(dec)
			if err != nil {
				return err
			}
			d.Providers = providers
		case "model_config":
			models, err := decodeModelsJSON(dec)
			if err != nil {
				return err
			}
			d.Models = models
		default:
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return err
			}
		}
	}
	_, err := dec.Token()
	return err
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func decodeProvidersJSON(dec *json.Decoder) ([]ProviderEntry, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("configstore: api_provider must be a JSON object: %w", err)
	}
	var entries []ProviderEntry
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := nameTok.(string)
		var p domain.Provider
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("configstore: provider %q: %w", name, err)
		}
		p.Name = name
		p.BaseURL = util.NormaliseBaseURL(p.BaseURL)
		entries = append(entries, ProviderEntry{Name: name, Provider: p})
	}
	_, err := dec.Token()
	return entries, err
}

func decodeModelsJSON(dec *json.Decoder) ([]ModelEntry, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("configstore: model_config must be a JSON object: %w", err)
	}
	var entries []ModelEntry
	for dec.More() {
		modelTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		model, _ := modelTok.(string)
		bindings, err := decodeBindingsJSON(model, dec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ModelEntry{Model: model, Bindings: bindings})
	}
	_, err := dec.Token()
	return entries, err
}

func decodeBindingsJSON(model string, dec *json.Decoder) ([]BindingEntry, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("configstore: model %q bindings must be a JSON object: %w", model, err)
	}
	var entries []BindingEntry
	for dec.More() {
		providerTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		provider, _ := providerTok.(string)
		var b domain.Binding
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("configstore: model %q provider %q: %w", model, provider, err)
		}
		b.Provider = provider
		entries = append(entries, BindingEntry{Provider: provider, Binding: b})
	}
	_, err := dec.Token()
	return entries, err
}

// providerSet returns the set of known provider names, for validation.
func (d Document) providerSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.Providers))
	for _, p := range d.Providers {
		set[p.Name] = struct{}{}
	}
	return set
}

// FindProvider returns the provider entry by name.
func (d Document) FindProvider(name string) (domain.Provider, bool) {
	for _, p := range d.Providers {
		if p.Name == name {
			return p.Provider, true
		}
	}
	return domain.Provider{}, false
}

// FindModel returns the model entry by name.
func (d Document) FindModel(name string) (ModelEntry, bool) {
	for _, m := range d.Models {
		if m.Model == name {
			return m, true
		}
	}
	return ModelEntry{}, false
}

// Clone deep-copies the document so replace() can mutate a working copy
// without ever exposing a partially-edited document to readers.
func (d Document) Clone() Document {
	out := Document{
		Providers: make([]ProviderEntry, len(d.Providers)),
		Models:    make([]ModelEntry, len(d.Models)),
		Extra:     make(map[string]yaml.Node, len(d.Extra)),
	}
	copy(out.Providers, d.Providers)
	for i, m := range d.Models {
		bindings := make([]BindingEntry, len(m.Bindings))
		copy(bindings, m.Bindings)
		out.Models[i] = ModelEntry{Model: m.Model, Bindings: bindings}
	}
	for k, v := range d.Extra {
		out.Extra[k] = v
	}
	return out
}
