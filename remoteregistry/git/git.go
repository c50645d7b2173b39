package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/skosovsky/aibridge/catalog"
	"github.com/skosovsky/aibridge/remoteregistry"
)

// shortHashLen is the length of the commit hash reported as catalog version.
const shortHashLen = 12

var (
	_ remoteregistry.Fetcher = (*Fetcher)(nil)
	_ remoteregistry.Lister  = (*Fetcher)(nil)
	_ remoteregistry.Statter = (*Fetcher)(nil)
)

// Fetcher reads YAML catalogs from a Git repository (clone on first use, then pull).
// Call Close to remove a temporary clone; a clone directory set with WithCloneDir is kept.
type Fetcher struct {
	repoURL   string
	branch    string
	dir       string
	depth     int
	authToken string
	cloneDir  string
	logger    *slog.Logger

	mu       sync.Mutex
	localDir string
	repo     *git.Repository
}

// NewFetcher creates a Fetcher. The repo is cloned on first use.
// Returns error if repoURL or the branch is empty.
func NewFetcher(repoURL string, opts ...Option) (*Fetcher, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, errors.New("remoteregistry/git: repo URL must not be empty")
	}
	g := &Fetcher{
		repoURL: repoURL,
		branch:  "main",
		depth:   1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if strings.TrimSpace(g.branch) == "" {
		return nil, errors.New("remoteregistry/git: branch must not be empty")
	}
	return g, nil
}

// Fetch reads the catalog from the repo: {dir}/{id}.yaml or {dir}/{id}.yml.
func (g *Fetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := remoteregistry.ValidateID(id); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureClone(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", remoteregistry.ErrFetchFailed, err)
	}
	path, ok := g.locate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", remoteregistry.ErrNotFound, id)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is validated by locate to stay inside the catalog dir
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", remoteregistry.ErrFetchFailed, path, err)
	}
	return data, nil
}

// ListIDs returns the ids of every catalog file directly under the catalog dir, sorted.
func (g *Fetcher) ListIDs(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureClone(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", remoteregistry.ErrFetchFailed, err)
	}
	entries, err := os.ReadDir(g.baseDir())
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", remoteregistry.ErrFetchFailed, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id, ok := strings.CutSuffix(name, ".yaml")
		if !ok {
			id, ok = strings.CutSuffix(name, ".yml")
		}
		if !ok || remoteregistry.ValidateID(id) != nil || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Stat reports the HEAD commit of the clone for a catalog that exists.
// Version is the abbreviated commit hash and UpdatedAt the committer time.
func (g *Fetcher) Stat(ctx context.Context, id string) (catalog.Info, error) {
	if err := remoteregistry.ValidateID(id); err != nil {
		return catalog.Info{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureClone(ctx); err != nil {
		return catalog.Info{}, fmt.Errorf("%w: %w", remoteregistry.ErrFetchFailed, err)
	}
	if _, ok := g.locate(id); !ok {
		return catalog.Info{}, fmt.Errorf("%w: %q", catalog.ErrCatalogNotFound, id)
	}
	head, err := g.repo.Head()
	if err != nil {
		return catalog.Info{}, fmt.Errorf("%w: head: %w", remoteregistry.ErrFetchFailed, err)
	}
	commit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return catalog.Info{}, fmt.Errorf("%w: commit: %w", remoteregistry.ErrFetchFailed, err)
	}
	vendor, _, _ := strings.Cut(id, ".")
	hash := commit.Hash.String()
	return catalog.Info{
		Vendor:    vendor,
		Version:   hash[:min(shortHashLen, len(hash))],
		UpdatedAt: commit.Committer.When,
	}, nil
}

func (g *Fetcher) baseDir() string {
	return filepath.Clean(filepath.Join(g.localDir, g.dir))
}

// locate returns the first existing candidate path for id inside the catalog dir.
func (g *Fetcher) locate(id string) (string, bool) {
	base := g.baseDir()
	for _, rel := range remoteregistry.CandidatePaths(id) {
		path := filepath.Join(base, rel)
		relPath, err := filepath.Rel(base, path)
		if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
			continue
		}
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

func (g *Fetcher) auth() *http.BasicAuth {
	if g.authToken == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: g.authToken}
}

func (g *Fetcher) ensureClone(ctx context.Context) error {
	if g.repo != nil {
		g.pull(ctx)
		return nil
	}
	if g.cloneDir != "" {
		if repo, err := git.PlainOpen(g.cloneDir); err == nil {
			g.localDir = g.cloneDir
			g.repo = repo
			g.pull(ctx)
			return nil
		}
	}
	dir := g.cloneDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "aibridge-catalogs-*")
		if err != nil {
			return fmt.Errorf("temp dir: %w", err)
		}
		dir = tmp
	}
	cloneOpts := &git.CloneOptions{
		URL:           g.repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(g.branch),
		SingleBranch:  true,
	}
	if g.depth > 0 {
		cloneOpts.Depth = g.depth
	}
	if a := g.auth(); a != nil {
		cloneOpts.Auth = a
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		if g.cloneDir == "" {
			_ = os.RemoveAll(dir)
		}
		return fmt.Errorf("clone: %w", err)
	}
	g.localDir = dir
	g.repo = repo
	return nil
}

// pull refreshes the working tree. Failures keep the existing clone (stale data).
// file:// remotes are read as cloned.
func (g *Fetcher) pull(ctx context.Context) {
	if strings.HasPrefix(g.repoURL, "file://") {
		return
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		g.logger.WarnContext(ctx, "git worktree unavailable, using cached clone", "err", err)
		return
	}
	pullOpts := &git.PullOptions{ReferenceName: plumbing.NewBranchReferenceName(g.branch), SingleBranch: true}
	if a := g.auth(); a != nil {
		pullOpts.Auth = a
	}
	if err := wt.PullContext(ctx, pullOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		g.logger.WarnContext(ctx, "git pull failed, using cached clone", "repo", g.repoURL, "err", err)
	}
}

// Close forgets the clone and removes it unless it lives in a directory set with WithCloneDir.
// Safe to call multiple times.
func (g *Fetcher) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.localDir == "" {
		return nil
	}
	dir := g.localDir
	g.localDir = ""
	g.repo = nil
	if dir == g.cloneDir {
		return nil
	}
	return os.RemoveAll(dir)
}
