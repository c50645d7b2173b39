package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// minThinkingBudget is the smallest budget the Messages API accepts.
const minThinkingBudget int64 = 1024

// Translate maps req to Messages API parameters. Content the model or the API cannot take is dropped
// with a diagnostic; no messages left after that is adapter.ErrNoMappableMessages.
func (a *Adapter) Translate(ctx context.Context, req *aibridge.Request) (*anthropic.MessageNewParams, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", adapter.ErrInvalidRequest)
	}
	var messages []anthropic.MessageParam
	for _, m := range a.gate.FilterMessages(ctx, req.Messages) {
		blocks := a.blocks(ctx, m.Role, m.Content)
		if len(blocks) == 0 {
			continue
		}
		if m.Role == aibridge.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}
	if len(messages) == 0 {
		return nil, adapter.ErrNoMappableMessages
	}

	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(adapter.ResolveModel(req, a.model)),
		MaxTokens: a.maxTokens,
		Messages:  messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	sp := adapter.ExtractParams(req.Params)
	if sp.TopP != nil {
		params.TopP = anthropic.Float(*sp.TopP)
	}
	if sp.TopK != nil {
		params.TopK = anthropic.Int(*sp.TopK)
	}
	if len(sp.Stop) > 0 {
		params.StopSequences = sp.Stop
	}
	a.applyThinking(ctx, req, params)

	for _, t := range req.Tools {
		tool := anthropic.ToolUnionParamOfTool(toolSchema(t.Parameters), t.Name)
		if t.Description != "" {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		params.Tools = append(params.Tools, tool)
	}
	if req.UseWebSearch {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{}})
	}
	if a.gate.AllowImageGeneration(ctx, req.UseImageGeneration) {
		a.gate.Report(ctx, adapter.Diagnostic{
			Kind:    adapter.DiagBlockDropped,
			Message: "image generation tool dropped: the Messages API has no image generation tool",
		})
	}
	return params, nil
}

// applyThinking enables extended thinking with the request budget. The budget passes through
// unless it is below the API minimum. max_tokens must exceed the budget, and sampling overrides
// are not accepted while thinking.
func (a *Adapter) applyThinking(ctx context.Context, req *aibridge.Request, params *anthropic.MessageNewParams) {
	budget, ok := adapter.ResolveBudget(req)
	if !ok {
		return
	}
	if !a.gate.Capabilities().Thinking {
		a.gate.Report(ctx, adapter.Diagnostic{
			Kind:    adapter.DiagBlockDropped,
			Message: "reasoning configuration ignored: model has no thinking capability",
		})
		return
	}
	budget = max(budget, minThinkingBudget)
	params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	if params.MaxTokens <= budget {
		params.MaxTokens = budget + a.maxTokens
	}
	params.Temperature = param.Opt[float64]{}
	params.TopK = param.Opt[int64]{}
}

func (a *Adapter) blocks(ctx context.Context, role aibridge.Role, content []aibridge.ContentBlock) []anthropic.ContentBlockParamUnion {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(content))
	for _, b := range content {
		switch x := b.(type) {
		case aibridge.TextBlock:
			if x.Text != "" {
				out = append(out, anthropic.NewTextBlock(x.Text))
			}
		case aibridge.ThinkingBlock:
			if role != aibridge.RoleAssistant || x.Signature == "" {
				a.gate.Unmappable(ctx, role, b, "thinking block needs the assistant role and a signature")
				continue
			}
			out = append(out, anthropic.NewThinkingBlock(x.Signature, x.Thinking))
		case aibridge.RedactedThinkingBlock:
			if role != aibridge.RoleAssistant {
				a.gate.Unmappable(ctx, role, b, "redacted thinking needs the assistant role")
				continue
			}
			out = append(out, anthropic.NewRedactedThinkingBlock(x.Data))
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			if img, ok := a.image(ctx, role, b); ok {
				out = append(out, anthropic.ContentBlockParamUnion{OfImage: &img})
			}
		case aibridge.ToolUseBlock:
			if role != aibridge.RoleAssistant {
				a.gate.Unmappable(ctx, role, b, "tool use needs the assistant role")
				continue
			}
			input := x.Input
			if strings.TrimSpace(input) == "" {
				input = "{}"
			}
			if !json.Valid([]byte(input)) {
				a.gate.Unmappable(ctx, role, b, "tool use input is not valid JSON")
				continue
			}
			out = append(out, anthropic.NewToolUseBlock(x.ID, json.RawMessage(input), x.Name))
		case aibridge.ToolResultBlock:
			tr := a.toolResult(ctx, role, x)
			out = append(out, anthropic.ContentBlockParamUnion{OfToolResult: &tr})
		default:
			a.gate.Unmappable(ctx, role, b, "content type has no Messages API equivalent")
		}
	}
	return out
}

// image inlines or references an image. https URLs are sent as URL sources;
// anything else goes through the resolver.
func (a *Adapter) image(ctx context.Context, role aibridge.Role, b aibridge.ContentBlock) (anthropic.ImageBlockParam, bool) {
	switch x := b.(type) {
	case aibridge.ImageDataBlock:
		return imageData(x), true
	case aibridge.ImageBlock:
		if strings.HasPrefix(x.URL, "https://") {
			return anthropic.ImageBlockParam{Source: anthropic.ImageBlockParamSourceUnion{
				OfURL: &anthropic.URLImageSourceParam{URL: x.URL},
			}}, true
		}
		data, err := a.resolver.Resolve(ctx, x.URL)
		if err != nil {
			a.gate.Unmappable(ctx, role, b, "image could not be resolved: "+err.Error())
			return anthropic.ImageBlockParam{}, false
		}
		return imageData(data), true
	}
	return anthropic.ImageBlockParam{}, false
}

func imageData(x aibridge.ImageDataBlock) anthropic.ImageBlockParam {
	mime := x.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return anthropic.ImageBlockParam{Source: anthropic.ImageBlockParamSourceUnion{
		OfBase64: &anthropic.Base64ImageSourceParam{
			MediaType: anthropic.Base64ImageSourceMediaType(mime),
			Data:      x.Base64Data,
		},
	}}
}

func (a *Adapter) toolResult(ctx context.Context, role aibridge.Role, x aibridge.ToolResultBlock) anthropic.ToolResultBlockParam {
	tr := anthropic.ToolResultBlockParam{ToolUseID: x.ToolUseID}
	if x.IsError {
		tr.IsError = anthropic.Bool(true)
	}
	for _, c := range x.Content {
		switch y := c.(type) {
		case aibridge.TextBlock:
			tr.Content = append(tr.Content, anthropic.ToolResultBlockParamContentUnion{OfText: &anthropic.TextBlockParam{Text: y.Text}})
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			if kept, ok := a.gate.Filter(ctx, role, c); ok {
				if img, ok := a.image(ctx, role, kept); ok {
					tr.Content = append(tr.Content, anthropic.ToolResultBlockParamContentUnion{OfImage: &img})
				}
			}
		default:
			a.gate.Unmappable(ctx, role, c, "tool result content must be text or image")
		}
	}
	return tr
}

// toolSchema maps a JSON Schema object to the tool input schema. Keys other than
// type, properties and required are carried as extra fields.
func toolSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if params == nil {
		return schema
	}
	schema.Properties = params["properties"]
	schema.Required = adapter.SchemaRequired(params)
	for k, v := range params {
		switch k {
		case "type", "properties", "required":
		default:
			if schema.ExtraFields == nil {
				schema.ExtraFields = make(map[string]any)
			}
			schema.ExtraFields[k] = v
		}
	}
	return schema
}
