package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
	"github.com/skosovsky/aibridge/mediafetch"
)

// Translate maps req to Responses API parameters. The system prompt becomes the instructions;
// text is tagged input_text for user turns and output_text for assistant turns.
func (a *Adapter) Translate(ctx context.Context, req *aibridge.Request) (*responses.ResponseNewParams, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", adapter.ErrInvalidRequest)
	}
	var input responses.ResponseInputParam
	for _, m := range a.gate.FilterMessages(ctx, req.Messages) {
		input = append(input, a.items(ctx, m)...)
	}
	if len(input) == 0 {
		return nil, adapter.ErrNoMappableMessages
	}

	params := &responses.ResponseNewParams{
		Model: shared.ResponsesModel(adapter.ResolveModel(req, a.model)),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if sp := adapter.ExtractParams(req.Params); sp.TopP != nil {
		params.TopP = openai.Float(*sp.TopP)
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}
	if req.Store != nil {
		params.Store = openai.Bool(*req.Store)
	}
	if effort, ok := adapter.ResolveEffort(req); ok {
		if a.gate.Capabilities().Thinking {
			params.Reasoning = shared.ReasoningParam{
				Effort:  shared.ReasoningEffort(effort),
				Summary: shared.ReasoningSummaryAuto,
			}
		} else {
			a.gate.Report(ctx, adapter.Diagnostic{
				Kind:    adapter.DiagBlockDropped,
				Message: "reasoning configuration ignored: model has no thinking capability",
			})
		}
	}

	for _, t := range req.Tools {
		tool := responses.ToolParamOfFunction(t.Name, t.Parameters, false)
		if t.Description != "" {
			tool.OfFunction.Description = openai.String(t.Description)
		}
		params.Tools = append(params.Tools, tool)
	}
	if req.UseWebSearch {
		params.Tools = append(params.Tools, responses.ToolParamOfWebSearch(responses.WebSearchToolTypeWebSearch))
	}
	if a.gate.AllowImageGeneration(ctx, req.UseImageGeneration) {
		params.Tools = append(params.Tools, imageGenerationTool(req.Image))
	}
	return params, nil
}

// items converts one message. Consecutive text and images share a message item; tool calls and
// tool results are items of their own, so block order is kept across item boundaries.
func (a *Adapter) items(ctx context.Context, m aibridge.Message) []responses.ResponseInputItemUnionParam {
	var (
		out     []responses.ResponseInputItemUnionParam
		content responses.ResponseInputMessageContentListParam
		output  []responses.ResponseOutputMessageContentUnionParam
	)
	flush := func() {
		if len(content) > 0 {
			out = append(out, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser))
			content = nil
		}
		if len(output) > 0 {
			out = append(out, responses.ResponseInputItemUnionParam{
				OfOutputMessage: &responses.ResponseOutputMessageParam{Content: output},
			})
			output = nil
		}
	}
	for _, b := range m.Content {
		switch x := b.(type) {
		case aibridge.TextBlock:
			if x.Text == "" {
				continue
			}
			if m.Role == aibridge.RoleAssistant {
				output = append(output, responses.ResponseOutputMessageContentUnionParam{
					OfOutputText: &responses.ResponseOutputTextParam{Text: x.Text},
				})
			} else {
				content = append(content, responses.ResponseInputContentParamOfInputText(x.Text))
			}
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			content = append(content, responses.ResponseInputContentUnionParam{OfInputImage: &responses.ResponseInputImageParam{
				ImageURL: openai.String(imageURL(b)),
				Detail:   responses.ResponseInputImageDetailAuto,
			}})
		case aibridge.ToolUseBlock:
			if m.Role != aibridge.RoleAssistant {
				a.gate.Unmappable(ctx, m.Role, b, "tool use needs the assistant role")
				continue
			}
			flush()
			out = append(out, responses.ResponseInputItemParamOfFunctionCall(jsonOrEmpty(x.Input), x.ID, x.Name))
		case aibridge.ToolResultBlock:
			flush()
			out = append(out, a.toolOutput(ctx, m.Role, x))
		case aibridge.ImageGenerationCallBlock:
			flush()
			out = append(out, responses.ResponseInputItemParamOfItemReference(x.ID))
		default:
			a.gate.Unmappable(ctx, m.Role, b, "content type has no Responses API equivalent")
		}
	}
	flush()
	return out
}

func (a *Adapter) toolOutput(ctx context.Context, role aibridge.Role, x aibridge.ToolResultBlock) responses.ResponseInputItemUnionParam {
	var (
		text   strings.Builder
		list   responses.ResponseFunctionCallOutputItemListParam
		images bool
	)
	for _, c := range x.Content {
		switch y := c.(type) {
		case aibridge.TextBlock:
			text.WriteString(y.Text)
			list = append(list, responses.ResponseFunctionCallOutputItemUnionParam{
				OfInputText: &responses.ResponseInputTextContentParam{Text: y.Text},
			})
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			if kept, ok := a.gate.Filter(ctx, role, c); ok {
				images = true
				list = append(list, responses.ResponseFunctionCallOutputItemUnionParam{
					OfInputImage: &responses.ResponseInputImageContentParam{ImageURL: openai.String(imageURL(kept))},
				})
			}
		default:
			a.gate.Unmappable(ctx, role, c, "tool result content must be text or image")
		}
	}
	if images {
		return responses.ResponseInputItemParamOfFunctionCallOutput(x.ToolUseID, list)
	}
	return responses.ResponseInputItemParamOfFunctionCallOutput(x.ToolUseID, text.String())
}

// imageURL returns the URL of an image block, or a data URL for inline data.
func imageURL(b aibridge.ContentBlock) string {
	switch x := b.(type) {
	case aibridge.ImageBlock:
		return x.URL
	case aibridge.ImageDataBlock:
		return mediafetch.DataURL(x.MIMEType, x.Base64Data)
	}
	return ""
}

func jsonOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}

func imageGenerationTool(opts *aibridge.ImageOptions) responses.ToolUnionParam {
	tool := &responses.ToolImageGenerationParam{}
	if opts != nil {
		tool.Model = opts.Model
		tool.Size = opts.Size
		tool.Quality = opts.Quality
		tool.Background = opts.Background
		tool.OutputFormat = opts.OutputFormat
	}
	return responses.ToolUnionParam{OfImageGeneration: tool}
}

func mcpTool(s aibridge.MCPServer) (responses.ToolUnionParam, error) {
	if s.Label == "" || s.URL == "" {
		return responses.ToolUnionParam{}, fmt.Errorf("%w: mcp server needs a label and a url", adapter.ErrInvalidRequest)
	}
	tool := responses.ToolParamOfMcp(s.Label)
	tool.OfMcp.ServerURL = openai.String(s.URL)
	if s.Authorization != "" {
		tool.OfMcp.Authorization = openai.String(s.Authorization)
	}
	if len(s.Headers) > 0 {
		tool.OfMcp.Headers = s.Headers
	}
	if len(s.AllowedTools) > 0 {
		tool.OfMcp.AllowedTools = responses.ToolMcpAllowedToolsUnionParam{OfMcpAllowedTools: s.AllowedTools}
	}
	switch s.RequireApproval {
	case "":
	case "always", "never":
		tool.OfMcp.RequireApproval = responses.ToolMcpRequireApprovalUnionParam{
			OfMcpToolApprovalSetting: openai.String(s.RequireApproval),
		}
	default:
		return responses.ToolUnionParam{}, fmt.Errorf("%w: mcp require_approval must be always or never, got %q", adapter.ErrInvalidRequest, s.RequireApproval)
	}
	return tool, nil
}
