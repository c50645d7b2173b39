package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/aibridge/catalog"
	"github.com/skosovsky/aibridge/remoteregistry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func catalogYAML(vendor, model string) string {
	return "vendor: " + vendor + "\nmodels:\n  - id: " + model + "\n    vision: true\n"
}

func runGit(t *testing.T, dir string, cmds ...string) {
	t.Helper()
	for _, c := range cmds {
		cmd := exec.Command("sh", "-c", c) // #nosec G204 -- test helper: c is from fixed list
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test", "GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "run %q: %s", c, out)
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))     // #nosec G301 -- test helper: dir is t.TempDir()
		require.NoError(t, os.WriteFile(full, []byte(content), 0644)) // #nosec G306 -- test helper: catalog content
	}
}

// initRepo creates a git repo in dir with one commit on main containing files (relative path -> content).
func initRepo(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	writeFiles(t, dir, files)
	runGit(t, dir, "git init", "git branch -M main", "git add .", "git commit -m init")
}

func newFetcher(t *testing.T, dir string, opts ...Option) *Fetcher {
	t.Helper()
	g, err := NewFetcher("file://"+dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestFetcher_Fetch_Success(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	g := newFetcher(t, dir)

	data, err := g.Fetch(context.Background(), "openai")
	require.NoError(t, err)
	assert.Contains(t, string(data), "gpt-4o")
}

func TestFetcher_Fetch_EnvSpecificAndYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{
		"anthropic.yaml":     catalogYAML("anthropic", "claude-sonnet-4-5"),
		"anthropic.prod.yml": catalogYAML("anthropic", "claude-opus-4-1"),
	})
	g := newFetcher(t, dir)

	data, err := g.Fetch(context.Background(), "anthropic.prod")
	require.NoError(t, err)
	assert.Contains(t, string(data), "claude-opus-4-1")
}

func TestFetcher_Fetch_WithDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"catalogs/gemini.yaml": catalogYAML("gemini", "gemini-2.5-flash")})
	g := newFetcher(t, dir, WithDir("catalogs"))

	data, err := g.Fetch(context.Background(), "gemini")
	require.NoError(t, err)
	assert.Contains(t, string(data), "gemini-2.5-flash")
}

func TestFetcher_Fetch_NotFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	g := newFetcher(t, dir)

	_, err := g.Fetch(context.Background(), "ollama")
	require.ErrorIs(t, err, remoteregistry.ErrNotFound)
}

func TestFetcher_IntegrationWithRegistry(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	g := newFetcher(t, dir)
	reg := remoteregistry.New(g)
	ctx := context.Background()

	c, err := reg.Catalog(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o"}, c.IDs())
	assert.Len(t, c.Version, shortHashLen, "unversioned catalog takes the commit hash")

	cfg, err := catalog.Lookup(ctx, reg, "openai", "gpt-4o")
	require.NoError(t, err)
	assert.True(t, cfg.IsVision)
}

func TestFetcher_Fetch_WithBranch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	writeFiles(t, dir, map[string]string{"ollama.yaml": catalogYAML("ollama", "llama3.2")})
	runGit(t, dir, "git checkout -b dev", "git add .", "git commit -m dev")

	g := newFetcher(t, dir, WithBranch("dev"))
	data, err := g.Fetch(context.Background(), "ollama")
	require.NoError(t, err)
	assert.Contains(t, string(data), "llama3.2")

	main := newFetcher(t, dir)
	_, err = main.Fetch(context.Background(), "ollama")
	require.ErrorIs(t, err, remoteregistry.ErrNotFound)
}

func TestFetcher_FetchAfterClose(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	g, err := NewFetcher("file://" + dir)
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), "openai")
	require.NoError(t, err)
	require.NoError(t, g.Close())
	// After Close, Fetch re-clones.
	data, err := g.Fetch(context.Background(), "openai")
	require.NoError(t, err)
	assert.Contains(t, string(data), "gpt-4o")
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
}

func TestFetcher_Concurrent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	g := newFetcher(t, dir)
	errs := make(chan error, 20)
	for range 20 {
		go func() {
			_, err := g.Fetch(context.Background(), "openai")
			errs <- err
		}()
	}
	for range 20 {
		require.NoError(t, <-errs)
	}
}

func TestNewFetcher_Invalid(t *testing.T) {
	t.Parallel()
	for _, u := range []string{"", "   "} {
		_, err := NewFetcher(u)
		require.Error(t, err)
	}
	_, err := NewFetcher("file:///tmp/x", WithBranch(" "))
	require.Error(t, err)
}

func TestFetcher_Options(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	// WithAuth does not affect file:// URLs.
	g := newFetcher(t, dir, WithDepth(0), WithAuth("token"), WithLogger(nil))
	assert.NotNil(t, g.logger)
	_, err := g.Fetch(context.Background(), "openai")
	require.NoError(t, err)
}

func TestFetcher_Fetch_InvalidIDRejected(t *testing.T) {
	t.Parallel()
	g, err := NewFetcher("file:///nonexistent")
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, catalog.ErrInvalidName)
	_, err = g.Stat(context.Background(), "a:b")
	require.ErrorIs(t, err, catalog.ErrInvalidName)
}

func TestFetcher_WithCloneDir_PersistentAndReused(t *testing.T) {
	t.Parallel()
	repoDir := t.TempDir()
	initRepo(t, repoDir, map[string]string{"openai.yaml": catalogYAML("openai", "gpt-4o")})
	cloneDir := t.TempDir()

	g1, err := NewFetcher("file://"+repoDir, WithCloneDir(cloneDir))
	require.NoError(t, err)
	_, err = g1.Fetch(context.Background(), "openai")
	require.NoError(t, err)
	require.NoError(t, g1.Close())
	_, err = os.Stat(filepath.Join(cloneDir, ".git"))
	require.NoError(t, err, "clone dir survives Close")

	g2, err := NewFetcher("file://"+repoDir, WithCloneDir(cloneDir))
	require.NoError(t, err)
	defer func() { _ = g2.Close() }()
	data, err := g2.Fetch(context.Background(), "openai")
	require.NoError(t, err)
	assert.Contains(t, string(data), "gpt-4o")
}

func TestFetcher_ListIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{
		"openai.yaml":         catalogYAML("openai", "gpt-4o"),
		"openai.yml":          catalogYAML("openai", "gpt-4o"),
		"anthropic.prod.yaml": catalogYAML("anthropic", "claude-opus-4-1"),
		"gemini.yml":          catalogYAML("gemini", "gemini-2.5-flash"),
		"README.md":           "catalogs",
		"nested/ollama.yaml":  catalogYAML("ollama", "llama3.2"),
	})
	g := newFetcher(t, dir)

	ids, err := g.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic.prod", "gemini", "openai"}, ids)

	ids, err = remoteregistry.New(g).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestFetcher_Stat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	initRepo(t, dir, map[string]string{"anthropic.prod.yaml": catalogYAML("anthropic", "claude-opus-4-1")})
	g := newFetcher(t, dir)
	ctx := context.Background()

	info, err := g.Stat(ctx, "anthropic.prod")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", info.Vendor)
	assert.Len(t, info.Version, shortHashLen)
	assert.False(t, info.UpdatedAt.IsZero())

	_, err = g.Stat(ctx, "nonexistent")
	require.ErrorIs(t, err, catalog.ErrCatalogNotFound)
}
