package otelbridge

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// ScopeName is the instrumentation scope of the tracer.
const ScopeName = "github.com/skosovsky/aibridge/ext/otelbridge"

// Attribute keys.
const (
	AttrVendor         = attribute.Key("gen_ai.system")
	AttrRequestModel   = attribute.Key("gen_ai.request.model")
	AttrResponseModel  = attribute.Key("gen_ai.response.model")
	AttrResponseID     = attribute.Key("gen_ai.response.id")
	AttrStopReason     = attribute.Key("gen_ai.response.finish_reason")
	AttrInputTokens    = attribute.Key("gen_ai.usage.input_tokens")
	AttrOutputTokens   = attribute.Key("gen_ai.usage.output_tokens")
	AttrTotalCost      = attribute.Key("aibridge.cost.total")
	AttrWebSearch      = attribute.Key("aibridge.web_search")
	AttrImageGenerated = attribute.Key("aibridge.image_generated")
	AttrBlockCount     = attribute.Key("aibridge.stream.blocks")
	AttrErrorCode      = attribute.Key("aibridge.error.code")
	AttrErrorMessage   = attribute.Key("aibridge.error.public_message")
)

type options struct {
	provider trace.TracerProvider
}

// Option configures Wrap.
type Option func(*options)

// WithTracerProvider sets the provider spans are created from. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.provider = tp }
}

// Wrap returns a traced view of a. Wrapping nil returns nil.
func Wrap(a adapter.Adapter, opts ...Option) adapter.Adapter {
	if a == nil {
		return nil
	}
	o := options{provider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	t := &traced{next: a, tracer: o.provider.Tracer(ScopeName)}

	gen, isGen := a.(adapter.ImageGenerator)
	edit, isEdit := a.(adapter.ImageEditor)
	mcp, isMCP := a.(adapter.MCPChatter)
	g := generator{t: t, next: gen}
	e := editor{t: t, next: edit}
	m := chatter{t: t, next: mcp}
	switch {
	case isGen && isEdit && isMCP:
		return struct {
			*traced
			generator
			editor
			chatter
		}{t, g, e, m}
	case isGen && isEdit:
		return struct {
			*traced
			generator
			editor
		}{t, g, e}
	case isGen && isMCP:
		return struct {
			*traced
			generator
			chatter
		}{t, g, m}
	case isEdit && isMCP:
		return struct {
			*traced
			editor
			chatter
		}{t, e, m}
	case isGen:
		return struct {
			*traced
			generator
		}{t, g}
	case isEdit:
		return struct {
			*traced
			editor
		}{t, e}
	case isMCP:
		return struct {
			*traced
			chatter
		}{t, m}
	default:
		return t
	}
}

type traced struct {
	next   adapter.Adapter
	tracer trace.Tracer
}

func (t *traced) Vendor() string { return t.next.Vendor() }
func (t *traced) Model() aibridge.ModelConfig { return t.next.Model() }
func (t *traced) Capabilities() adapter.Capabilities { return t.next.Capabilities() }

func (t *traced) start(ctx context.Context, op, model string) (context.Context, trace.Span) {
	if model == "" {
		model = t.next.Model().ID
	}
	return t.tracer.Start(ctx, "aibridge."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrVendor.String(t.next.Vendor()),
			AttrRequestModel.String(model),
		),
	)
}

func (t *traced) GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error) {
	ctx, span := t.start(ctx, "generate_response", requestModel(req))
	defer span.End()
	resp, err := t.next.GenerateResponse(ctx, req)
	finish(span, resp, err)
	return resp, err
}

func (t *traced) SendChat(ctx context.Context, chat *aibridge.Chat) (*aibridge.ChatResponse, error) {
	model := ""
	if chat != nil {
		model = chat.Options.Model
	}
	ctx, span := t.start(ctx, "send_chat", model)
	defer span.End()
	resp, err := t.next.SendChat(ctx, chat)
	finishChat(span, resp, err)
	return resp, err
}

// StreamResponse opens the span when iteration starts and ends it when iteration stops,
// whether the stream finished or the consumer broke out.
func (t *traced) StreamResponse(ctx context.Context, req *aibridge.Request) iter.Seq2[aibridge.ContentBlock, error] {
	return func(yield func(aibridge.ContentBlock, error) bool) {
		ctx, span := t.start(ctx, "stream_response", requestModel(req))
		defer span.End()
		var (
			blocks int
			failed error
		)
		for b, err := range t.next.StreamResponse(ctx, req) {
			if err != nil {
				failed = err
			} else {
				blocks++
				observe(span, b)
			}
			if !yield(b, err) {
				break
			}
		}
		span.SetAttributes(AttrBlockCount.Int(blocks))
		if failed != nil {
			span.RecordError(failed)
			span.SetStatus(codes.Error, failed.Error())
		}
	}
}

type generator struct {
	t    *traced
	next adapter.ImageGenerator
}

func (g generator) GenerateImage(ctx context.Context, req *aibridge.ImageRequest) (*aibridge.AIResponse, error) {
	model := ""
	if req != nil {
		model = req.Options.Model
	}
	ctx, span := g.t.start(ctx, "generate_image", model)
	defer span.End()
	resp, err := g.next.GenerateImage(ctx, req)
	finish(span, resp, err)
	return resp, err
}

type editor struct {
	t    *traced
	next adapter.ImageEditor
}

func (e editor) EditImage(ctx context.Context, req *aibridge.ImageEditRequest) (*aibridge.AIResponse, error) {
	model := ""
	if req != nil {
		model = req.Options.Model
	}
	ctx, span := e.t.start(ctx, "edit_image", model)
	defer span.End()
	resp, err := e.next.EditImage(ctx, req)
	finish(span, resp, err)
	return resp, err
}

type chatter struct {
	t    *traced
	next adapter.MCPChatter
}

func (c chatter) SendMCPChat(ctx context.Context, chat *aibridge.Chat, servers []aibridge.MCPServer) (*aibridge.ChatResponse, error) {
	model := ""
	if chat != nil {
		model = chat.Options.Model
	}
	ctx, span := c.t.start(ctx, "send_mcp_chat", model)
	defer span.End()
	span.SetAttributes(attribute.Int("aibridge.mcp.servers", len(servers)))
	resp, err := c.next.SendMCPChat(ctx, chat, servers)
	finishChat(span, resp, err)
	return resp, err
}

func requestModel(req *aibridge.Request) string {
	if req == nil {
		return ""
	}
	return req.Model
}

func finish(span trace.Span, resp *aibridge.AIResponse, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(
		AttrResponseModel.String(resp.Model),
		AttrResponseID.String(resp.ID),
		AttrStopReason.String(resp.StopReason),
	)
	setUsage(span, resp.Usage)
	for _, e := range resp.ErrorBlocks() {
		errorEvent(span, e)
	}
}

func finishChat(span trace.Span, resp *aibridge.ChatResponse, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(AttrResponseID.String(resp.ResponseID))
	setUsage(span, resp.Usage)
	for _, b := range resp.Message.Content {
		if e, ok := b.(aibridge.ErrorBlock); ok {
			errorEvent(span, e)
		}
	}
}

// observe records what a streamed block tells about the response.
func observe(span trace.Span, b aibridge.ContentBlock) {
	switch x := b.(type) {
	case aibridge.MetaBlock:
		if x.ResponseID != "" {
			span.SetAttributes(AttrResponseID.String(x.ResponseID))
		}
		setUsage(span, x.Usage)
	case aibridge.ErrorBlock:
		errorEvent(span, x)
	}
}

func setUsage(span trace.Span, u *aibridge.Usage) {
	if u == nil {
		return
	}
	span.SetAttributes(
		AttrInputTokens.Int64(u.InputTokens),
		AttrOutputTokens.Int64(u.OutputTokens),
		AttrTotalCost.Float64(u.TotalCost),
		AttrWebSearch.Bool(u.DidWebSearch),
		AttrImageGenerated.Bool(u.DidGenerateImage),
	)
}

func errorEvent(span trace.Span, e aibridge.ErrorBlock) {
	span.AddEvent("error_block", trace.WithAttributes(
		AttrErrorCode.String(e.Code),
		AttrErrorMessage.String(e.PublicMessage),
	))
	span.SetStatus(codes.Error, e.Code)
}
