package gemini

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"google.golang.org/genai"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// Vendor is the name reported by Adapter.Vendor and stamped on diagnostics.
const Vendor = "gemini"

var (
	_ adapter.Adapter        = (*Adapter)(nil)
	_ adapter.ImageGenerator = (*Adapter)(nil)
)

// Request wraps Contents and Config for the GenerateContent API.
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Adapter talks to the Gemini API through the genai client.
type Adapter struct {
	client   *genai.Client
	model    aibridge.ModelConfig
	gate     *adapter.Gate
	resolver adapter.ImageResolver
}

type options struct {
	sink       adapter.DiagnosticSink
	resolver   adapter.ImageResolver
	httpClient *http.Client
	apiVersion string
}

// Option configures an Adapter.
type Option func(*options)

// WithDiagnosticSink sets where dropped-content diagnostics go. Default logs through slog.
func WithDiagnosticSink(s adapter.DiagnosticSink) Option {
	return func(o *options) { o.sink = s }
}

// WithImageResolver sets how image URLs that are not file URIs are turned into inline data.
func WithImageResolver(r adapter.ImageResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithHTTPClient sets the HTTP client of the genai client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithAPIVersion overrides the API version path segment ("v1beta" by default).
func WithAPIVersion(v string) Option {
	return func(o *options) { o.apiVersion = v }
}

// New returns an Adapter bound to model. cfg.APIKey is required; the genai client is created
// with ctx.
func New(ctx context.Context, cfg aibridge.VendorConfig, model aibridge.ModelConfig, opts ...Option) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", adapter.ErrMissingAPIKey, Vendor)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: o.apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	resolver := o.resolver
	if resolver == nil {
		resolver = adapter.DefaultImageResolver
	}
	return &Adapter{
		client:   client,
		model:    model,
		gate:     adapter.NewGate(Vendor, model, o.sink, adapter.WithImageRoles(aibridge.RoleUser, aibridge.RoleAssistant)),
		resolver: resolver,
	}, nil
}

// Vendor returns "gemini".
func (a *Adapter) Vendor() string { return Vendor }

// Model returns the bound model configuration.
func (a *Adapter) Model() aibridge.ModelConfig { return a.model }

// Capabilities returns the current capability flags.
func (a *Adapter) Capabilities() adapter.Capabilities { return a.gate.Capabilities() }

// Gate exposes the capability gate, e.g. to override flags at runtime.
func (a *Adapter) Gate() *adapter.Gate { return a.gate }

// GenerateResponse sends req to GenerateContent and normalizes the reply.
func (a *Adapter) GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error) {
	r, err := a.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Models.GenerateContent(ctx, r.Model, r.Contents, r.Config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	return a.ParseResponse(ctx, resp, r.Model)
}

// SendChat runs one chat turn through GenerateResponse.
func (a *Adapter) SendChat(ctx context.Context, chat *aibridge.Chat) (*aibridge.ChatResponse, error) {
	req, err := adapter.BuildChatRequest(chat)
	if err != nil {
		return nil, err
	}
	resp, err := a.GenerateResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	return adapter.ChatResponseFrom(resp), nil
}

// StreamResponse streams req. A failure is yielded as an ErrorBlock and the stream ends without an error.
func (a *Adapter) StreamResponse(ctx context.Context, req *aibridge.Request) iter.Seq2[aibridge.ContentBlock, error] {
	return func(yield func(aibridge.ContentBlock, error) bool) {
		r, err := a.Translate(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		a.consumeStream(ctx, a.client.Models.GenerateContentStream(ctx, r.Model, r.Contents, r.Config), yield)
	}
}
