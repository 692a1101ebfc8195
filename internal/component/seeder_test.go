package component

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frameport/frameport/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkoutManifest = `
tag: checkout
url:
  production: https://child.example.com/checkout
  sandbox: https://sandbox.child.example.com/checkout
  default: https://child.example.com/checkout
domain: https://child.example.com
context: iframe
dimensions:
  width: 450
  height: 300
props:
  amount:
    required: true
    send_to_child: true
    allow_delegate: true
  locale:
    default: en_US
    send_to_child: true
`

const walletManifest = `
tag: wallet
url: https://wallet.example.com/embed
domain: https://wallet.example.com
context: popup
`

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSeederLoadsManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "checkout.component.yaml", checkoutManifest)
	writeManifest(t, dir, "wallet.component.yml", walletManifest)
	writeManifest(t, dir, "notes.txt", "not a manifest")

	reg := NewRegistry()
	require.NoError(t, NewSeeder(reg, dir, nil).Seed())
	assert.Equal(t, []string{"checkout", "wallet"}, reg.Tags())

	def, ok := reg.Get("checkout")
	require.True(t, ok)
	assert.Equal(t, window.KindIFrame, def.DefaultContext)
	assert.Equal(t, Dimensions{Width: 450, Height: 300}, def.Dimensions)
	require.Contains(t, def.Props, "amount")
	assert.True(t, def.Props["amount"].Required)
	assert.True(t, def.Props["amount"].AllowDelegate)
	require.NotNil(t, def.Props["locale"].Default)
	assert.Equal(t, "en_US", def.Props["locale"].Default(nil))
}

func TestSeederEnvKeyedResolvers(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "checkout.component.yaml", checkoutManifest)

	reg := NewRegistry()
	require.NoError(t, NewSeeder(reg, dir, nil).Seed())
	def, ok := reg.Get("checkout")
	require.True(t, ok)

	url, err := def.URL(map[string]any{PropEnv: "sandbox"})
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.child.example.com/checkout", url)

	url, err = def.URL(map[string]any{PropEnv: "staging"})
	require.NoError(t, err)
	assert.Equal(t, "https://child.example.com/checkout", url, "unknown env falls back to default")
}

func TestSeederSkipsBadManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.component.yaml", walletManifest)
	writeManifest(t, dir, "bad.component.yaml", "tag: broken\n# no url or domain\n")
	writeManifest(t, dir, "unparsable.component.yaml", ":\n  - {{{\n")

	reg := NewRegistry()
	require.NoError(t, NewSeeder(reg, dir, nil).Seed())
	assert.Equal(t, []string{"wallet"}, reg.Tags())
}

func TestSeederToleratesMissingDirectory(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, NewSeeder(reg, filepath.Join(t.TempDir(), "nope"), nil).Seed())
	assert.Zero(t, reg.Len())
}
