package ollama

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// Vendor is the name reported by Adapter.Vendor and stamped on diagnostics.
const Vendor = "ollama"

// DefaultBaseURL is the address of a local Ollama server.
const DefaultBaseURL = "http://localhost:11434"

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter talks to the Ollama Chat API.
type Adapter struct {
	client   *api.Client
	model    aibridge.ModelConfig
	gate     *adapter.Gate
	resolver adapter.ImageResolver
}

type options struct {
	sink       adapter.DiagnosticSink
	resolver   adapter.ImageResolver
	httpClient *http.Client
}

// Option configures an Adapter.
type Option func(*options)

// WithDiagnosticSink sets where dropped-content diagnostics go. Default logs through slog.
func WithDiagnosticSink(s adapter.DiagnosticSink) Option {
	return func(o *options) { o.sink = s }
}

// WithImageResolver sets how image URLs are turned into inline data.
func WithImageResolver(r adapter.ImageResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithHTTPClient sets the HTTP client of the Ollama client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New returns an Adapter bound to model. cfg.BaseURL defaults to DefaultBaseURL. The API key is
// optional; when set it is sent as a bearer token, as hosted Ollama endpoints expect.
func New(cfg aibridge.VendorConfig, model aibridge.ModelConfig, opts ...Option) (*Adapter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse base url: %w", err)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.APIKey != "" {
		httpClient = withBearer(httpClient, cfg.APIKey)
	}
	resolver := o.resolver
	if resolver == nil {
		resolver = adapter.DefaultImageResolver
	}
	return &Adapter{
		client:   api.NewClient(base, httpClient),
		model:    model,
		gate:     adapter.NewGate(Vendor, model, o.sink, adapter.WithThinkingInput()),
		resolver: resolver,
	}, nil
}

// Vendor returns "ollama".
func (a *Adapter) Vendor() string { return Vendor }

// Model returns the bound model configuration.
func (a *Adapter) Model() aibridge.ModelConfig { return a.model }

// Capabilities returns the current capability flags.
func (a *Adapter) Capabilities() adapter.Capabilities { return a.gate.Capabilities() }

// Gate exposes the capability gate, e.g. to override flags at runtime.
func (a *Adapter) Gate() *adapter.Gate { return a.gate }

// GenerateResponse sends req to /api/chat without streaming and normalizes the reply.
func (a *Adapter) GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error) {
	r, err := a.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	r.Stream = new(bool)
	var final *api.ChatResponse
	err = a.client.Chat(ctx, r, func(resp api.ChatResponse) error {
		final = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: chat: %w", err)
	}
	return a.ParseResponse(ctx, final)
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
		stream := true
		r.Stream = &stream
		a.consumeStream(ctx, r, yield)
	}
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(r)
}

// withBearer returns a copy of c that authenticates every request with token.
func withBearer(c *http.Client, token string) *http.Client {
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	out := *c
	out.Transport = bearerTransport{token: token, next: next}
	return &out
}
