package openai

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// Vendor is the name reported by Adapter.Vendor and stamped on diagnostics.
const Vendor = "openai"

var (
	_ adapter.Adapter        = (*Adapter)(nil)
	_ adapter.ImageGenerator = (*Adapter)(nil)
	_ adapter.ImageEditor    = (*Adapter)(nil)
	_ adapter.MCPChatter     = (*Adapter)(nil)
)

// Adapter talks to the OpenAI Responses API. Image generation and editing go through the Images API.
type Adapter struct {
	client openai.Client
	model  aibridge.ModelConfig
	gate   *adapter.Gate
}

type options struct {
	sink        adapter.DiagnosticSink
	httpClient  *http.Client
	requestOpts []option.RequestOption
}

// Option configures an Adapter or a Compat adapter.
type Option func(*options)

// WithDiagnosticSink sets where dropped-content diagnostics go. Default logs through slog.
func WithDiagnosticSink(s adapter.DiagnosticSink) Option {
	return func(o *options) { o.sink = s }
}

// WithHTTPClient sets the HTTP client of the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRequestOptions appends raw SDK request options (retries, headers, middleware).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *options) { o.requestOpts = append(o.requestOpts, opts...) }
}

func newClient(cfg aibridge.VendorConfig, opts []Option) (openai.Client, options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.APIKey == "" {
		return openai.Client{}, o, fmt.Errorf("%w: %s", adapter.ErrMissingAPIKey, Vendor)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.OrganizationID != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.OrganizationID))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	reqOpts = append(reqOpts, o.requestOpts...)
	return openai.NewClient(reqOpts...), o, nil
}

// New returns an Adapter bound to model. cfg.APIKey is required.
func New(cfg aibridge.VendorConfig, model aibridge.ModelConfig, opts ...Option) (*Adapter, error) {
	client, o, err := newClient(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client: client,
		model:  model,
		gate:   adapter.NewGate(Vendor, model, o.sink),
	}, nil
}

// Vendor returns "openai".
func (a *Adapter) Vendor() string { return Vendor }

// Model returns the bound model configuration.
func (a *Adapter) Model() aibridge.ModelConfig { return a.model }

// Capabilities returns the current capability flags.
func (a *Adapter) Capabilities() adapter.Capabilities { return a.gate.Capabilities() }

// Gate exposes the capability gate, e.g. to override flags at runtime.
func (a *Adapter) Gate() *adapter.Gate { return a.gate }

// GenerateResponse sends req to the Responses API and normalizes the reply.
func (a *Adapter) GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error) {
	params, err := a.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.create(ctx, params)
}

func (a *Adapter) create(ctx context.Context, params *responses.ResponseNewParams) (*aibridge.AIResponse, error) {
	resp, err := a.client.Responses.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("openai: responses: %w", err)
	}
	return a.ParseResponse(ctx, resp)
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

// SendMCPChat runs one chat turn with servers attached as remote MCP tools. The vendor calls
// the servers itself; the reply holds the model's final answer.
func (a *Adapter) SendMCPChat(ctx context.Context, chat *aibridge.Chat, servers []aibridge.MCPServer) (*aibridge.ChatResponse, error) {
	req, err := adapter.BuildChatRequest(chat)
	if err != nil {
		return nil, err
	}
	params, err := a.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, s := range servers {
		tool, err := mcpTool(s)
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, tool)
	}
	resp, err := a.create(ctx, params)
	if err != nil {
		return nil, err
	}
	return adapter.ChatResponseFrom(resp), nil
}

// StreamResponse streams req. A failure is yielded as an ErrorBlock and ends the stream without error.
func (a *Adapter) StreamResponse(ctx context.Context, req *aibridge.Request) iter.Seq2[aibridge.ContentBlock, error] {
	return func(yield func(aibridge.ContentBlock, error) bool) {
		params, err := a.Translate(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		stream := a.client.Responses.NewStreaming(ctx, *params)
		defer func() { _ = stream.Close() }()
		a.consumeStream(ctx, stream, requestedImageMIMEType(params.Tools), yield)
	}
}
