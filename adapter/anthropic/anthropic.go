package anthropic

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// Vendor is the name reported by Adapter.Vendor and stamped on diagnostics.
const Vendor = "anthropic"

const defaultMaxTokens int64 = 4096

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter talks to the Anthropic Messages API.
type Adapter struct {
	client    anthropic.Client
	model     aibridge.ModelConfig
	gate      *adapter.Gate
	resolver  adapter.ImageResolver
	maxTokens int64
}

type options struct {
	sink        adapter.DiagnosticSink
	resolver    adapter.ImageResolver
	httpClient  *http.Client
	maxTokens   int64
	requestOpts []option.RequestOption
}

// Option configures an Adapter.
type Option func(*options)

// WithDiagnosticSink sets where dropped-content diagnostics go. Default logs through slog.
func WithDiagnosticSink(s adapter.DiagnosticSink) Option {
	return func(o *options) { o.sink = s }
}

// WithImageResolver sets how non-https image URLs are turned into inline data.
func WithImageResolver(r adapter.ImageResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithHTTPClient sets the HTTP client of the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMaxTokens sets the output limit used when Request.MaxTokens is zero. Default is 4096.
func WithMaxTokens(n int64) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithRequestOptions appends raw SDK request options (retries, headers, middleware).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *options) { o.requestOpts = append(o.requestOpts, opts...) }
}

// New returns an Adapter bound to model. cfg.APIKey is required.
func New(cfg aibridge.VendorConfig, model aibridge.ModelConfig, opts ...Option) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", adapter.ErrMissingAPIKey, Vendor)
	}
	o := options{maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	reqOpts = append(reqOpts, o.requestOpts...)
	resolver := o.resolver
	if resolver == nil {
		resolver = adapter.DefaultImageResolver
	}
	if o.maxTokens <= 0 {
		o.maxTokens = defaultMaxTokens
	}
	return &Adapter{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		gate:      adapter.NewGate(Vendor, model, o.sink, adapter.WithThinkingInput()),
		resolver:  resolver,
		maxTokens: o.maxTokens,
	}, nil
}

// Vendor returns "anthropic".
func (a *Adapter) Vendor() string { return Vendor }

// Model returns the bound model configuration.
func (a *Adapter) Model() aibridge.ModelConfig { return a.model }

// Capabilities returns the current capability flags.
func (a *Adapter) Capabilities() adapter.Capabilities { return a.gate.Capabilities() }

// Gate exposes the capability gate, e.g. to override flags at runtime.
func (a *Adapter) Gate() *adapter.Gate { return a.gate }

// GenerateResponse sends req to the Messages API and normalizes the reply.
func (a *Adapter) GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error) {
	params, err := a.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	msg, err := a.client.Messages.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages: %w", err)
	}
	return a.ParseResponse(ctx, msg)
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

// StreamResponse streams req. A failure is yielded as an ErrorBlock followed by the original error.
func (a *Adapter) StreamResponse(ctx context.Context, req *aibridge.Request) iter.Seq2[aibridge.ContentBlock, error] {
	return func(yield func(aibridge.ContentBlock, error) bool) {
		params, err := a.Translate(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		stream := a.client.Messages.NewStreaming(ctx, *params)
		defer func() { _ = stream.Close() }()
		a.consumeStream(ctx, stream, yield)
	}
}
