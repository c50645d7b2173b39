package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"
	"github.com/tidwall/gjson"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// CompatVendor is the vendor name of Compat adapters.
const CompatVendor = "openai-compatible"

var _ adapter.Adapter = (*Compat)(nil)

// Compat talks to the Chat Completions API of OpenAI-compatible servers (vLLM, DeepSeek,
// OpenRouter and the like). Set VendorConfig.BaseURL to the server root.
// A "reasoning_content" field on messages and deltas is read as thinking.
type Compat struct {
	client openai.Client
	model  aibridge.ModelConfig
	gate   *adapter.Gate
}

// NewCompat returns a Compat adapter bound to model. cfg.APIKey is required.
func NewCompat(cfg aibridge.VendorConfig, model aibridge.ModelConfig, opts ...Option) (*Compat, error) {
	client, o, err := newClient(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Compat{
		client: client,
		model:  model,
		gate:   adapter.NewGate(CompatVendor, model, o.sink),
	}, nil
}

// Vendor returns "openai-compatible".
func (c *Compat) Vendor() string { return CompatVendor }

// Model returns the bound model configuration.
func (c *Compat) Model() aibridge.ModelConfig { return c.model }

// Capabilities returns the current capability flags.
func (c *Compat) Capabilities() adapter.Capabilities { return c.gate.Capabilities() }

// Gate exposes the capability gate.
func (c *Compat) Gate() *adapter.Gate { return c.gate }

// Translate maps req to Chat Completions parameters.
func (c *Compat) Translate(ctx context.Context, req *aibridge.Request) (*openai.ChatCompletionNewParams, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", adapter.ErrInvalidRequest)
	}
	var msgs []openai.ChatCompletionMessageParamUnion
	for _, m := range c.gate.FilterMessages(ctx, req.Messages) {
		msgs = append(msgs, c.messages(ctx, m)...)
	}
	if len(msgs) == 0 {
		return nil, adapter.ErrNoMappableMessages
	}
	if req.SystemPrompt != "" {
		msgs = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.SystemPrompt)}, msgs...)
	}

	params := &openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(adapter.ResolveModel(req, c.model)),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	sp := adapter.ExtractParams(req.Params)
	if sp.TopP != nil {
		params.TopP = openai.Float(*sp.TopP)
	}
	if sp.Seed != nil {
		params.Seed = openai.Int(*sp.Seed)
	}
	if len(sp.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: sp.Stop}
	}
	if req.Store != nil {
		params.Store = openai.Bool(*req.Store)
	}
	if effort, ok := adapter.ResolveEffort(req); ok && c.gate.Capabilities().Thinking {
		params.ReasoningEffort = shared.ReasoningEffort(effort)
	}
	for _, t := range req.Tools {
		fn := shared.FunctionDefinitionParam{Name: t.Name, Parameters: shared.FunctionParameters(t.Parameters)}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(fn))
	}
	if req.UseWebSearch || req.UseImageGeneration {
		c.gate.Report(ctx, adapter.Diagnostic{
			Kind:    adapter.DiagBlockDropped,
			Message: "hosted tools are not available on Chat Completions",
		})
	}
	return params, nil
}

// messages converts one message. Tool results become separate tool messages after the
// message that carried them.
func (c *Compat) messages(ctx context.Context, m aibridge.Message) []openai.ChatCompletionMessageParamUnion {
	var (
		parts     []openai.ChatCompletionContentPartUnionParam
		text      strings.Builder
		toolCalls []openai.ChatCompletionMessageToolCallUnionParam
		results   []openai.ChatCompletionMessageParamUnion
		hasImage  bool
	)
	for _, b := range m.Content {
		switch x := b.(type) {
		case aibridge.TextBlock:
			text.WriteString(x.Text)
			parts = append(parts, openai.TextContentPart(x.Text))
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			hasImage = true
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    imageURL(b),
				Detail: "auto",
			}))
		case aibridge.ToolUseBlock:
			if m.Role != aibridge.RoleAssistant || !json.Valid([]byte(jsonOrEmpty(x.Input))) {
				c.gate.Unmappable(ctx, m.Role, b, "tool use needs the assistant role and JSON arguments")
				continue
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: x.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      x.Name,
						Arguments: jsonOrEmpty(x.Input),
					},
				},
			})
		case aibridge.ToolResultBlock:
			results = append(results, openai.ToolMessage(aibridge.TextOf(x.Content), x.ToolUseID))
		default:
			c.gate.Unmappable(ctx, m.Role, b, "content type has no Chat Completions equivalent")
		}
	}

	var out []openai.ChatCompletionMessageParamUnion
	switch {
	case m.Role == aibridge.RoleAssistant && len(toolCalls) > 0:
		assistant := &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
		if text.Len() > 0 {
			assistant.Content.OfString = openai.String(text.String())
		}
		out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
	case m.Role == aibridge.RoleAssistant && text.Len() > 0:
		out = append(out, openai.AssistantMessage(text.String()))
	case m.Role == aibridge.RoleUser && hasImage:
		out = append(out, openai.UserMessage(parts))
	case m.Role == aibridge.RoleUser && text.Len() > 0:
		out = append(out, openai.UserMessage(text.String()))
	case m.Role == aibridge.RoleSystem && text.Len() > 0:
		out = append(out, openai.SystemMessage(text.String()))
	}
	return append(out, results...)
}

// GenerateResponse sends req and normalizes the first choice.
func (c *Compat) GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error) {
	params, err := c.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	completion, err := c.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("openai-compatible: chat completions: %w", err)
	}
	return c.ParseResponse(ctx, completion)
}

// SendChat runs one chat turn through GenerateResponse.
func (c *Compat) SendChat(ctx context.Context, chat *aibridge.Chat) (*aibridge.ChatResponse, error) {
	req, err := adapter.BuildChatRequest(chat)
	if err != nil {
		return nil, err
	}
	resp, err := c.GenerateResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	return adapter.ChatResponseFrom(resp), nil
}

// ParseResponse normalizes the first choice of completion: reasoning, text, tool calls.
func (c *Compat) ParseResponse(ctx context.Context, completion *openai.ChatCompletion) (*aibridge.AIResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	choice := completion.Choices[0]
	msg := choice.Message
	var blocks []aibridge.ContentBlock
	if r := gjson.Get(msg.RawJSON(), "reasoning_content").String(); r != "" {
		blocks = append(blocks, aibridge.ThinkingBlock{Thinking: r})
	}
	hasText := msg.Content != ""
	if hasText {
		blocks = append(blocks, aibridge.TextBlock{Text: msg.Content})
	}
	hasTools := false
	for _, tc := range msg.ToolCalls {
		if tc.Type != "function" {
			continue
		}
		hasTools = true
		blocks = append(blocks, aibridge.ToolUseBlock{ID: tc.ID, Name: tc.Function.Name, Input: jsonOrEmpty(tc.Function.Arguments)})
	}
	if e, ok := finishFailure(choice.FinishReason, msg.Refusal); ok {
		blocks = append(blocks, e)
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	if !hasText && hasTools {
		c.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagEmptyText, Message: "response carries tool calls only"})
	}
	var usage *aibridge.Usage
	if completion.JSON.Usage.Valid() {
		usage = adapter.ComputeUsage(c.model, &adapter.TokenCounts{
			Input:  completion.Usage.PromptTokens,
			Output: completion.Usage.CompletionTokens,
		})
	}
	return adapter.FinishResponse(completion.ID, completion.Model, choice.FinishReason, blocks, usage), nil
}

func finishFailure(reason, refusal string) (aibridge.ErrorBlock, bool) {
	switch {
	case refusal != "":
		return adapter.SoftFailure(adapter.CodeRefusal, refusal), true
	case reason == "length":
		return adapter.SoftFailure(adapter.CodeMaxTokens, reason), true
	case reason == "content_filter":
		return adapter.SoftFailure(adapter.CodeSafety, reason), true
	default:
		return aibridge.ErrorBlock{}, false
	}
}

// Assembler indexes of the single choice streamed by Compat. Tool call i lives at i+toolIndexBase.
const (
	thinkingIndex = -1
	textIndex     = 0
	toolIndexBase = 1
)

// StreamResponse streams req with usage reporting enabled.
func (c *Compat) StreamResponse(ctx context.Context, req *aibridge.Request) iter.Seq2[aibridge.ContentBlock, error] {
	return func(yield func(aibridge.ContentBlock, error) bool) {
		params, err := c.Translate(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
		stream := c.client.Chat.Completions.NewStreaming(ctx, *params)
		defer func() { _ = stream.Close() }()
		c.consumeStream(ctx, stream, yield)
	}
}

type compatStream struct {
	asm          *adapter.StreamAssembler
	responseID   string
	finishReason string
	refusal      strings.Builder
	usage        *adapter.TokenCounts
}

func (c *Compat) consumeStream(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], yield func(aibridge.ContentBlock, error) bool) {
	st := &compatStream{asm: adapter.NewStreamAssembler()}
	for stream.Next() {
		if !c.handleChunk(ctx, st, stream.Current(), yield) {
			return
		}
	}
	if err := stream.Err(); err != nil {
		streamPolicy.Fail(yield, errorBlock(err), fmt.Errorf("openai-compatible: stream: %w", err))
		return
	}
	for _, b := range st.asm.CloseAll() {
		if !yield(normalizeToolUse(b), nil) {
			return
		}
	}
	if e, ok := finishFailure(st.finishReason, st.refusal.String()); ok {
		if !yield(e, nil) {
			return
		}
	}
	yield(aibridge.MetaBlock{ResponseID: st.responseID, Usage: adapter.ComputeUsage(c.model, st.usage)}, nil)
}

func (c *Compat) handleChunk(ctx context.Context, st *compatStream, chunk openai.ChatCompletionChunk, yield func(aibridge.ContentBlock, error) bool) bool {
	if st.responseID == "" && chunk.ID != "" {
		st.responseID = chunk.ID
		if !yield(aibridge.MetaBlock{ResponseID: chunk.ID}, nil) {
			return false
		}
	}
	if chunk.JSON.Usage.Valid() {
		st.usage = &adapter.TokenCounts{Input: chunk.Usage.PromptTokens, Output: chunk.Usage.CompletionTokens}
	}
	if len(chunk.Choices) == 0 {
		return true
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		st.finishReason = choice.FinishReason
	}
	d := choice.Delta
	if r := gjson.Get(d.RawJSON(), "reasoning_content").String(); r != "" {
		if !st.asm.IsOpen(thinkingIndex) {
			st.asm.Open(thinkingIndex, adapter.KindThinking, "", "")
		}
		b, _ := st.asm.Delta(thinkingIndex, adapter.KindThinking, r)
		if !yield(b, nil) {
			return false
		}
	}
	if d.Content != "" {
		if !st.asm.IsOpen(textIndex) {
			st.asm.Open(textIndex, adapter.KindText, "", "")
		}
		b, _ := st.asm.Delta(textIndex, adapter.KindText, d.Content)
		if !yield(b, nil) {
			return false
		}
	}
	st.refusal.WriteString(d.Refusal)
	for _, tc := range d.ToolCalls {
		index := int(tc.Index) + toolIndexBase
		if tc.ID != "" && !st.asm.IsOpen(index) {
			st.asm.Open(index, adapter.KindToolUse, tc.ID, tc.Function.Name)
		}
		if _, err := st.asm.Delta(index, adapter.KindToolUse, tc.Function.Arguments); err != nil {
			c.gate.Report(ctx, adapter.Diagnostic{
				Kind:    adapter.DiagStreamEventIgnored,
				Message: fmt.Sprintf("tool call delta %d arrived before its id", tc.Index),
			})
		}
	}
	return true
}
