package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
	"github.com/skosovsky/aibridge/mediafetch"
)

// Translate maps req to a chat request. Stream is left unset; GenerateResponse and
// StreamResponse set it. Content Ollama cannot take is dropped with a diagnostic.
func (a *Adapter) Translate(ctx context.Context, req *aibridge.Request) (*api.ChatRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", adapter.ErrInvalidRequest)
	}
	names := toolNames(req.Messages)
	var msgs []api.Message
	for _, m := range a.gate.FilterMessages(ctx, req.Messages) {
		msgs = append(msgs, a.messages(ctx, m, names)...)
	}
	if len(msgs) == 0 {
		return nil, adapter.ErrNoMappableMessages
	}
	if req.SystemPrompt != "" {
		msgs = append([]api.Message{{Role: "system", Content: req.SystemPrompt}}, msgs...)
	}
	out := &api.ChatRequest{
		Model:    adapter.ResolveModel(req, a.model),
		Messages: msgs,
		Options:  modelOptions(req),
	}
	a.applyThinking(ctx, req, out)

	if len(req.Tools) > 0 {
		out.Tools = make(api.Tools, 0, len(req.Tools))
		for _, t := range req.Tools {
			tool, err := translateTool(t)
			if err != nil {
				return nil, err
			}
			out.Tools = append(out.Tools, tool)
		}
	}
	if req.UseWebSearch {
		a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagBlockDropped, Message: "web search is not available on Ollama"})
	}
	if a.gate.AllowImageGeneration(ctx, req.UseImageGeneration) {
		a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagBlockDropped, Message: "image generation is not available on Ollama chat"})
	}
	return out, nil
}

// modelOptions returns the runtime options map, or nil when req sets none.
func modelOptions(req *aibridge.Request) map[string]any {
	opts := make(map[string]any)
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	sp := adapter.ExtractParams(req.Params)
	if sp.TopP != nil {
		opts["top_p"] = *sp.TopP
	}
	if sp.TopK != nil {
		opts["top_k"] = *sp.TopK
	}
	if sp.Seed != nil {
		opts["seed"] = *sp.Seed
	}
	if len(sp.Stop) > 0 {
		opts["stop"] = sp.Stop
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// applyThinking turns thinking on. An explicit effort is sent as the level string, which
// models with graded thinking honour; a budget alone only enables it.
func (a *Adapter) applyThinking(ctx context.Context, req *aibridge.Request, out *api.ChatRequest) {
	if req.ReasoningEffort == "" && req.BudgetTokens == nil {
		return
	}
	if !a.gate.Capabilities().Thinking {
		a.gate.Report(ctx, adapter.Diagnostic{
			Kind:    adapter.DiagBlockDropped,
			Message: "reasoning configuration ignored: model has no thinking capability",
		})
		return
	}
	if req.ReasoningEffort != "" {
		out.Think = &api.ThinkValue{Value: string(req.ReasoningEffort)}
		return
	}
	out.Think = &api.ThinkValue{Value: true}
}

// messages maps one message. Tool results become separate "tool" messages placed where they
// appear; the text and images around them are flushed into the message's own role.
func (a *Adapter) messages(ctx context.Context, m aibridge.Message, names map[string]string) []api.Message {
	role := "user"
	if m.Role == aibridge.RoleAssistant {
		role = "assistant"
	}
	var (
		out     []api.Message
		text    []string
		think   []string
		images  []api.ImageData
		calls   []api.ToolCall
		pending bool
	)
	flush := func() {
		if !pending {
			return
		}
		out = append(out, api.Message{
			Role:      role,
			Content:   strings.Join(text, "\n"),
			Thinking:  strings.Join(think, "\n"),
			Images:    images,
			ToolCalls: calls,
		})
		text, think, images, calls, pending = nil, nil, nil, nil, false
	}
	for _, b := range m.Content {
		switch x := b.(type) {
		case aibridge.TextBlock:
			if x.Text != "" {
				text = append(text, x.Text)
				pending = true
			}
		case aibridge.ThinkingBlock:
			if m.Role == aibridge.RoleAssistant && x.Thinking != "" {
				think = append(think, x.Thinking)
				pending = true
			}
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			if img, ok := a.image(ctx, m.Role, b); ok {
				images = append(images, img)
				pending = true
			}
		case aibridge.ToolUseBlock:
			if m.Role != aibridge.RoleAssistant {
				a.gate.Unmappable(ctx, m.Role, b, "tool use needs the assistant role")
				continue
			}
			var args api.ToolCallFunctionArguments
			if strings.TrimSpace(x.Input) != "" {
				if err := json.Unmarshal([]byte(x.Input), &args); err != nil {
					a.gate.Unmappable(ctx, m.Role, b, "tool use input is not a JSON object")
					continue
				}
			}
			calls = append(calls, api.ToolCall{
				ID: x.ID,
				Function: api.ToolCallFunction{
					Index:     len(calls),
					Name:      x.Name,
					Arguments: args,
				},
			})
			pending = true
		case aibridge.ToolResultBlock:
			if m.Role != aibridge.RoleUser {
				a.gate.Unmappable(ctx, m.Role, b, "tool result needs the user role")
				continue
			}
			flush()
			out = append(out, a.toolResult(ctx, x, names[x.ToolUseID]))
		default:
			a.gate.Unmappable(ctx, m.Role, b, "content type has no Ollama equivalent")
		}
	}
	flush()
	return out
}

// toolResult maps a tool result to a tool message. Ollama tool messages carry text only.
func (a *Adapter) toolResult(ctx context.Context, x aibridge.ToolResultBlock, name string) api.Message {
	var text []string
	for _, c := range x.Content {
		if t, ok := c.(aibridge.TextBlock); ok {
			text = append(text, t.Text)
			continue
		}
		a.gate.Unmappable(ctx, aibridge.RoleUser, c, "tool result content must be text")
	}
	content := strings.Join(text, "\n")
	if x.IsError {
		content = "error: " + content
	}
	return api.Message{Role: "tool", Content: content, ToolCallID: x.ToolUseID, ToolName: name}
}

// image returns raw image bytes. Data URLs are decoded in place; other URLs go through the resolver.
func (a *Adapter) image(ctx context.Context, role aibridge.Role, b aibridge.ContentBlock) (api.ImageData, bool) {
	var data aibridge.ImageDataBlock
	switch x := b.(type) {
	case aibridge.ImageDataBlock:
		data = x
	case aibridge.ImageBlock:
		if _, payload, err := mediafetch.ParseDataURL(x.URL); err == nil {
			data = aibridge.ImageDataBlock{Base64Data: payload}
			break
		}
		resolved, err := a.resolver.Resolve(ctx, x.URL)
		if err != nil {
			a.gate.Unmappable(ctx, role, b, "image could not be resolved: "+err.Error())
			return nil, false
		}
		data = resolved
	default:
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(data.Base64Data)
	if err != nil {
		a.gate.Unmappable(ctx, role, b, "image data is not valid base64")
		return nil, false
	}
	return api.ImageData(raw), true
}

func toolNames(msgs []aibridge.Message) map[string]string {
	names := make(map[string]string)
	for _, m := range msgs {
		for _, b := range m.Content {
			if t, ok := b.(aibridge.ToolUseBlock); ok {
				names[t.ID] = t.Name
			}
		}
	}
	return names
}

func translateTool(t aibridge.ToolDefinition) (api.Tool, error) {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Properties: api.NewToolPropertiesMap(),
	}
	if t.Parameters != nil {
		b, err := json.Marshal(t.Parameters)
		if err != nil {
			return api.Tool{}, fmt.Errorf("%w: tool %s parameters: %w", adapter.ErrInvalidRequest, t.Name, err)
		}
		if err = json.Unmarshal(b, &params); err != nil {
			return api.Tool{}, fmt.Errorf("%w: tool %s parameters: %w", adapter.ErrInvalidRequest, t.Name, err)
		}
		if params.Properties == nil {
			params.Properties = api.NewToolPropertiesMap()
		}
	}
	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}, nil
}
