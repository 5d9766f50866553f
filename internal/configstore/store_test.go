package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
api_provider:
  p1:
    base_url: https://api.p1.test/v1
    api_key: secret1
    limits:
      rpm: 10
      tpm: 1000
  p2:
    base_url: https://api.p2.test/v1
    api_key: secret2
model_config:
  gpt-4o:
    p1:
      enable: true
    p2:
      alias: gpt4o-mini
      enable: true
`

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoad_ParsesOrderPreserving(t *testing.T) {
	path := writeSample(t, t.TempDir())
	store, err := Load(path)
	require.NoError(t, err)

	doc := store.Snapshot()
	require.Len(t, doc.Providers, 2)
	assert.Equal(t, "p1", doc.Providers[0].Name)
	assert.Equal(t, "p2", doc.Providers[1].Name)

	model, ok := doc.FindModel("gpt-4o")
	require.True(t, ok)
	require.Len(t, model.Bindings, 2)
	assert.Equal(t, "p1", model.Bindings[0].Provider)
	assert.Equal(t, "p2", model.Bindings[1].Provider)
	assert.Equal(t, "gpt4o-mini", model.Bindings[1].Binding.Alias)
}

func TestReplace_RejectsUnknownProviderReference(t *testing.T) {
	store, err := Load(writeSample(t, t.TempDir()))
	require.NoError(t, err)

	bad := store.Snapshot().Clone()
	bad.Models[0].Bindings = append(bad.Models[0].Bindings, BindingEntry{Provider: "ghost"})

	err = store.Replace(bad)
	require.Error(t, err)

	// live view must be untouched
	assert.Len(t, store.Snapshot().Models[0].Bindings, 2)
}

func TestUpdateBinding_RoundTrips(t *testing.T) {
	store, err := Load(writeSample(t, t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, store.UpdateBinding("gpt-4o", "p1", "enable", "false"))

	model, ok := store.Snapshot().FindModel("gpt-4o")
	require.True(t, ok)
	assert.False(t, model.Bindings[0].Binding.Enable)
}

func TestUpdateLimit_RoundTrips(t *testing.T) {
	store, err := Load(writeSample(t, t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, store.UpdateLimit("p1", "rpm", 5))

	p, ok := store.Snapshot().FindProvider("p1")
	require.True(t, ok)
	require.NotNil(t, p.Limits.RPM)
	assert.Equal(t, 5, *p.Limits.RPM)
}

func TestSnapshot_StableAcrossReplace(t *testing.T) {
	store, err := Load(writeSample(t, t.TempDir()))
	require.NoError(t, err)

	before := store.Snapshot()
	require.NoError(t, store.UpdateLimit("p1", "rpm", 999))
	after := store.Snapshot()

	beforeP, _ := before.FindProvider("p1")
	afterP, _ := after.FindProvider("p1")
	require.NotNil(t, beforeP.Limits.RPM)
	require.NotNil(t, afterP.Limits.RPM)
	assert.Equal(t, 10, *beforeP.Limits.RPM, "snapshot captured before replace must not see the edit")
	assert.Equal(t, 999, *afterP.Limits.RPM)
}
