package embedregistry

import (
	"context"
	"embed"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/aibridge/catalog"
)

//go:embed testdata/catalogs/*
var catalogsFS embed.FS

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEmbedRegistry_New(t *testing.T) {
	t.Parallel()
	reg, err := New(catalogsFS, "testdata/catalogs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"anthropic", "gemini"}, reg.Vendors())
}

func TestEmbedRegistry_Catalog(t *testing.T) {
	t.Parallel()
	reg, err := New(catalogsFS, "testdata/catalogs")
	require.NoError(t, err)

	c, err := reg.Catalog(context.Background(), "gemini")
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "imagen-4.0-generate-001"}, c.IDs())
}

// TestEmbedRegistry_Catalog_BaseFallback ensures an empty env returns the base file, not the env-specific one.
func TestEmbedRegistry_Catalog_BaseFallback(t *testing.T) {
	t.Parallel()
	reg, err := New(catalogsFS, "testdata/catalogs")
	require.NoError(t, err)

	c, err := reg.Catalog(context.Background(), "anthropic")
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-sonnet-4-5"}, c.IDs())

	staging, err := reg.CatalogEnv(context.Background(), "anthropic", "staging")
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-sonnet-4-5"}, staging.IDs())
}

func TestEmbedRegistry_Catalog_EnvSpecific(t *testing.T) {
	t.Parallel()
	reg, err := New(catalogsFS, "testdata/catalogs", WithEnvironment("prod"))
	require.NoError(t, err)

	c, err := reg.Catalog(context.Background(), "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "prod", c.Version)
	assert.Equal(t, []string{"claude-opus-4-1"}, c.IDs())
}

func TestEmbedRegistry_Catalog_NotFound(t *testing.T) {
	t.Parallel()
	reg, err := New(catalogsFS, "testdata/catalogs")
	require.NoError(t, err)
	_, err = reg.Catalog(context.Background(), "nonexistent")
	require.ErrorIs(t, err, catalog.ErrCatalogNotFound)
}

func TestEmbedRegistry_New_InvalidCatalog(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"c/openai.yaml": &fstest.MapFile{Data: []byte("vendor: openai\nmodels: []\n")},
	}
	_, err := New(fsys, "c")
	require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
	assert.Contains(t, err.Error(), "c/openai.yaml")
}
