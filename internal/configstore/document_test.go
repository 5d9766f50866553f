package configstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{"api_provider":{"p1":{"base_url":"https://api.p1.test/v1","api_key":"secret1","limits":{"rpm":10,"tpm":1000}},"p2":{"base_url":"https://api.p2.test/v1","api_key":"secret2"}},"model_config":{"gpt-4o":{"p1":{"enable":true},"p2":{"alias":"gpt4o-mini","enable":true}}}}`

func TestDocument_UnmarshalJSON_PreservesOrderAndFields(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &doc))

	require.Len(t, doc.Providers, 2)
	assert.Equal(t, "p1", doc.Providers[0].Name)
	assert.Equal(t, "p2", doc.Providers[1].Name)
	require.NotNil(t, doc.Providers[0].Provider.Limits.RPM)
	assert.Equal(t, 10, *doc.Providers[0].Provider.Limits.RPM)

	model, ok := doc.FindModel("gpt-4o")
	require.True(t, ok)
	require.Len(t, model.Bindings, 2)
	assert.Equal(t, "p1", model.Bindings[0].Provider)
	assert.Equal(t, "p2", model.Bindings[1].Provider)
	assert.Equal(t, "gpt4o-mini", model.Bindings[1].Binding.Alias)
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &doc))

	encoded, err := json.Marshal(doc)
	require.NoError(t, err)

	var roundTripped Document
	require.NoError(t, json.Unmarshal(encoded, &roundTripped))

	assert.Equal(t, doc.Providers[0].Name, roundTripped.Providers[0].Name)
	assert.Equal(t, doc.Providers[1].Name, roundTripped.Providers[1].Name)
	rtModel, ok := roundTripped.FindModel("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "gpt4o-mini", rtModel.Bindings[1].Binding.Alias)
}

func TestDocument_UnmarshalJSON_RejectsNonObjectRoot(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`"not an object"`), &doc)
	assert.Error(t, err)
}
