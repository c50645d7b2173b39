package config

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"go.uber.org/goleak"

	"github.com/skosovsky/aibridge/adapter"
	"github.com/skosovsky/aibridge/catalog"
	"github.com/skosovsky/aibridge/fileregistry"
	"github.com/skosovsky/aibridge/remoteregistry"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	goleak.VerifyTestMain(m)
}

func environ(vars ...string) Option {
	return WithEnviron(func() []string { return vars })
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(environ())
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 5*time.Minute, cfg.Catalog.TTL)
	assert.Empty(t, cfg.Vendors)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	cfg, err := Load(WithFile("testdata/aibridge.toml"), environ())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "catalogs", cfg.Catalog.Dir)
	assert.Equal(t, "prod", cfg.Catalog.Environment)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.TTL)
	require.Contains(t, cfg.Vendors, "openai")
	assert.Equal(t, "sk-file-key", cfg.Vendors["openai"].APIKey)
	assert.Equal(t, "org-123", cfg.Vendors["openai"].OrganizationID)
	assert.Equal(t, "aibridge-test", cfg.Vendors["anthropic"].APIKeyKeyring)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load(
		WithFile("testdata/aibridge.toml"),
		environ(
			"AIBRIDGE_VENDORS__OPENAI__API_KEY=sk-env-key",
			"AIBRIDGE_VENDORS__GEMINI__API_KEY=gemini-key",
			"AIBRIDGE_LOG__LEVEL=warn",
			"AIBRIDGE_CATALOG__TTL=30s",
			"OTHER_VAR=ignored",
		),
	)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Catalog.TTL)
	assert.Equal(t, "sk-env-key", cfg.Vendors["openai"].APIKey)
	assert.Equal(t, "org-123", cfg.Vendors["openai"].OrganizationID, "keys not set in env keep file values")
	assert.Equal(t, "gemini-key", cfg.Vendors["gemini"].APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		env  []string
	}{
		{"unknown level", []string{"AIBRIDGE_LOG__LEVEL=verbose"}},
		{"unknown format", []string{"AIBRIDGE_LOG__FORMAT=xml"}},
		{"bad base url", []string{"AIBRIDGE_VENDORS__OLLAMA__BASE_URL=not a url"}},
		{"bad remote url", []string{"AIBRIDGE_CATALOG__REMOTE_URL=::"}},
		{"negative ttl", []string{"AIBRIDGE_CATALOG__TTL=-1m"}},
		{"unparsable ttl", []string{"AIBRIDGE_CATALOG__TTL=soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(environ(tt.env...))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "missing.toml")), environ())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Vendor(t *testing.T) {
	t.Parallel()
	require.NoError(t, keyring.Set("aibridge-test", "anthropic", "sk-ant-from-keyring"))
	cfg, err := Load(WithFile("testdata/aibridge.toml"), environ())
	require.NoError(t, err)

	openai, err := cfg.Vendor("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-file-key", openai.APIKey)
	assert.Equal(t, "org-123", openai.OrganizationID)

	anthropic, err := cfg.Vendor("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-keyring", anthropic.APIKey)

	ollama, err := cfg.Vendor("ollama")
	require.NoError(t, err)
	assert.Empty(t, ollama.APIKey)
	assert.Equal(t, "http://localhost:11434", ollama.BaseURL)

	_, err = cfg.Vendor("mistral")
	require.ErrorIs(t, err, ErrUnknownVendor)
}

func TestConfig_Vendor_KeyringMissing(t *testing.T) {
	t.Parallel()
	cfg, err := Load(environ("AIBRIDGE_VENDORS__GEMINI__API_KEY_KEYRING=aibridge-empty"))
	require.NoError(t, err)
	_, err = cfg.Vendor("gemini")
	require.ErrorIs(t, err, adapter.ErrMissingAPIKey)
}

func TestConfig_Registry(t *testing.T) {
	t.Parallel()
	none := &Config{}
	reg, err := none.Registry()
	require.ErrorIs(t, err, ErrNoCatalog)
	assert.Nil(t, reg)

	dir := &Config{Catalog: CatalogConfig{Dir: t.TempDir(), Environment: "prod"}}
	reg, err = dir.Registry()
	require.NoError(t, err)
	assert.IsType(t, &fileregistry.Registry{}, reg)

	remote := &Config{Catalog: CatalogConfig{RemoteURL: "https://catalogs.example.com", RemoteToken: "t", TTL: time.Minute}}
	reg, err = remote.Registry()
	require.NoError(t, err)
	assert.IsType(t, &remoteregistry.Registry{}, reg)
}

func TestConfig_Registry_RemoteFallsBackToDir(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ollama.yaml"), []byte("vendor: ollama\nmodels:\n  - id: llama3.2\n"), 0o600))

	cfg := &Config{Catalog: CatalogConfig{Dir: dir, RemoteURL: srv.URL}}
	reg, err := cfg.Registry()
	require.NoError(t, err)
	model, err := catalog.Lookup(context.Background(), reg, "ollama", "llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", model.ID)

	_, err = reg.Catalog(context.Background(), "openai")
	require.ErrorIs(t, err, catalog.ErrCatalogNotFound)
}

func TestConfig_Logger_Redacts(t *testing.T) {
	t.Parallel()
	cfg, err := Load(environ("AIBRIDGE_LOG__FORMAT=json", "AIBRIDGE_LOG__LEVEL=warn"))
	require.NoError(t, err)
	var buf bytes.Buffer
	logger := cfg.Logger(&buf)

	logger.Info("dropped below level")
	logger.Warn("vendor rejected sk-ant-REDACTED", "api_key", "plain-secret")

	out := buf.String()
	assert.NotContains(t, out, "dropped below level")
	assert.NotContains(t, out, "abcdefghijklmnopqrstuvwxyz")
	assert.NotContains(t, out, "plain-secret")
	assert.Contains(t, out, adapter.RedactedPlaceholder)
	assert.Contains(t, out, `"level":"WARN"`)
}
