package remoteregistry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skosovsky/aibridge/catalog"
)

// HTTPFetcher fetches YAML catalogs over HTTP. URL resolution: {baseURL}/{id}.yaml, then {baseURL}/{id}.yml.
// 404 tries the next candidate; other non-2xx returns ErrHTTPStatus.
var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Statter = (*HTTPFetcher)(nil)
)

// maxBodySize limits HTTP response body size (1 MB); YAML catalogs are small.
const maxBodySize = 1 << 20

// defaultUserAgent is the User-Agent header value for HTTP requests.
const defaultUserAgent = "aibridge-catalog-registry/1.0"

// HTTPFetcher holds base URL, client, and optional Bearer token.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// HTTPOption configures HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client. Default has 30s timeout. If c is nil, the default client is left unchanged.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPFetcher) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithAuthToken sets the Bearer token for Authorization header.
func WithAuthToken(token string) HTTPOption {
	return func(h *HTTPFetcher) {
		h.authToken = token
	}
}

// NewHTTPFetcher creates an HTTPFetcher. baseURL must be a valid URL (e.g. https://config.example.com/catalogs).
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) (*HTTPFetcher, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remoteregistry: base URL must not be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("remoteregistry: invalid base URL %q", baseURL)
	}
	h := &HTTPFetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Fetch tries URLs in order: {base}/{id}.yaml, {base}/{id}.yml.
// On 404 proceeds to next; on other non-2xx returns ErrHTTPStatus.
func (h *HTTPFetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	for _, path := range CandidatePaths(id) {
		data, err := h.fetchOne(ctx, path)
		if err != nil {
			if errors.Is(err, errNotFound) {
				continue
			}
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Stat issues HEAD requests over the same candidates as Fetch. The ETag (unquoted) becomes
// Info.Version and Last-Modified becomes Info.UpdatedAt. Vendor is the id up to the first dot.
func (h *HTTPFetcher) Stat(ctx context.Context, id string) (catalog.Info, error) {
	if err := ValidateID(id); err != nil {
		return catalog.Info{}, err
	}
	for _, path := range CandidatePaths(id) {
		resp, err := h.do(ctx, http.MethodHead, path)
		if err != nil {
			if errors.Is(err, errNotFound) {
				continue
			}
			return catalog.Info{}, err
		}
		_ = resp.Body.Close()
		vendor, _, _ := strings.Cut(id, ".")
		info := catalog.Info{
			Vendor:  vendor,
			Version: strings.Trim(strings.TrimPrefix(resp.Header.Get("ETag"), "W/"), `"`),
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				info.UpdatedAt = t
			}
		}
		return info, nil
	}
	return catalog.Info{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

var errNotFound = errors.New("not found")

// do sends one request and returns the response for 2xx statuses. The caller closes the body.
func (h *HTTPFetcher) do(ctx context.Context, method, path string) (*http.Response, error) {
	u := h.baseURL + "/" + url.PathEscape(path)
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}
	resp, err := h.httpClient.Do(req) // #nosec G704 -- URL is from config and path-escaped id
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, errNotFound
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %w: %w: %s %s", ErrFetchFailed, ErrHTTPStatus, ErrUnauthorized, resp.Status, u)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %w: %s %s", ErrFetchFailed, ErrHTTPStatus, resp.Status, u)
	}
	return resp, nil
}

func (h *HTTPFetcher) fetchOne(ctx context.Context, path string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	// Detect truncation: if more data is available, body exceeded maxBodySize.
	probe := make([]byte, 1)
	if n, _ := resp.Body.Read(probe); n > 0 {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrFetchFailed, maxBodySize)
	}
	return data, nil
}
