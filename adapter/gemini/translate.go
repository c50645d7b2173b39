package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"path"
	"strings"

	"google.golang.org/genai"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
	"github.com/skosovsky/aibridge/mediafetch"
)

// filesAPIPrefix marks URIs returned by the Files API; they are sent as file data, not fetched.
const filesAPIPrefix = "https://generativelanguage.googleapis.com/"

// Translate maps req to GenerateContent arguments. Content the model or the API cannot take is
// dropped with a diagnostic; no contents left after that is adapter.ErrNoMappableMessages.
func (a *Adapter) Translate(ctx context.Context, req *aibridge.Request) (*Request, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", adapter.ErrInvalidRequest)
	}
	names := toolNames(req.Messages)
	var contents []*genai.Content
	for _, m := range a.gate.FilterMessages(ctx, req.Messages) {
		parts := a.parts(ctx, m.Role, m.Content, names)
		if len(parts) == 0 {
			continue
		}
		role := genai.RoleUser
		if m.Role == aibridge.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	if len(contents) == 0 {
		return nil, adapter.ErrNoMappableMessages
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = clampInt32(req.MaxTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	sp := adapter.ExtractParams(req.Params)
	if sp.TopP != nil {
		config.TopP = genai.Ptr(float32(*sp.TopP))
	}
	if sp.TopK != nil {
		config.TopK = genai.Ptr(float32(*sp.TopK))
	}
	if sp.Seed != nil {
		config.Seed = genai.Ptr(clampInt32(*sp.Seed))
	}
	if len(sp.Stop) > 0 {
		config.StopSequences = sp.Stop
	}
	a.applyThinking(ctx, req, config)

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration(t))
		}
		config.Tools = append(config.Tools, &genai.Tool{FunctionDeclarations: decls})
	}
	if req.UseWebSearch {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if a.gate.AllowImageGeneration(ctx, req.UseImageGeneration) {
		config.ResponseModalities = []string{string(genai.ModalityText), string(genai.ModalityImage)}
	}
	return &Request{Model: adapter.ResolveModel(req, a.model), Contents: contents, Config: config}, nil
}

// applyThinking passes the reasoning budget through as a thinking budget and asks for thought summaries.
func (a *Adapter) applyThinking(ctx context.Context, req *aibridge.Request, config *genai.GenerateContentConfig) {
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
	config.ThinkingConfig = &genai.ThinkingConfig{
		IncludeThoughts: true,
		ThinkingBudget:  genai.Ptr(clampInt32(budget)),
	}
}

func (a *Adapter) parts(ctx context.Context, role aibridge.Role, content []aibridge.ContentBlock, names map[string]string) []*genai.Part {
	out := make([]*genai.Part, 0, len(content))
	for _, b := range content {
		switch x := b.(type) {
		case aibridge.TextBlock:
			if x.Text != "" {
				out = append(out, genai.NewPartFromText(x.Text))
			}
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			if p, ok := a.image(ctx, role, b); ok {
				out = append(out, p)
			}
		case aibridge.ToolUseBlock:
			if role != aibridge.RoleAssistant {
				a.gate.Unmappable(ctx, role, b, "tool use needs the assistant role")
				continue
			}
			args, err := toolArgs(x.Input)
			if err != nil {
				a.gate.Unmappable(ctx, role, b, "tool use input is not a JSON object")
				continue
			}
			out = append(out, &genai.Part{FunctionCall: &genai.FunctionCall{ID: x.ID, Name: x.Name, Args: args}})
		case aibridge.ToolResultBlock:
			name, ok := names[x.ToolUseID]
			if !ok {
				a.gate.Unmappable(ctx, role, b, "tool result does not match a tool use in the history")
				continue
			}
			out = append(out, a.toolResult(ctx, role, name, x)...)
		default:
			a.gate.Unmappable(ctx, role, b, "content type has no Gemini equivalent")
		}
	}
	return out
}

// image sends file URIs as file data and everything else inline. Data URLs are decoded in
// place; other URLs go through the resolver.
func (a *Adapter) image(ctx context.Context, role aibridge.Role, b aibridge.ContentBlock) (*genai.Part, bool) {
	var data aibridge.ImageDataBlock
	switch x := b.(type) {
	case aibridge.ImageDataBlock:
		data = x
	case aibridge.ImageBlock:
		if strings.HasPrefix(x.URL, "gs://") || strings.HasPrefix(x.URL, filesAPIPrefix) {
			return genai.NewPartFromURI(x.URL, uriMIMEType(x.URL)), true
		}
		if mimeType, payload, err := mediafetch.ParseDataURL(x.URL); err == nil {
			data = aibridge.ImageDataBlock{MIMEType: mimeType, Base64Data: payload}
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
	mimeType := data.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return genai.NewPartFromBytes(raw, mimeType), true
}

// toolResult returns the function response followed by any images of the result as inline parts.
func (a *Adapter) toolResult(ctx context.Context, role aibridge.Role, name string, x aibridge.ToolResultBlock) []*genai.Part {
	var (
		text   []string
		images []*genai.Part
	)
	for _, c := range x.Content {
		switch y := c.(type) {
		case aibridge.TextBlock:
			text = append(text, y.Text)
		case aibridge.ImageBlock, aibridge.ImageDataBlock:
			if kept, ok := a.gate.Filter(ctx, role, c); ok {
				if p, ok := a.image(ctx, role, kept); ok {
					images = append(images, p)
				}
			}
		default:
			a.gate.Unmappable(ctx, role, c, "tool result content must be text or image")
		}
	}
	key := "output"
	if x.IsError {
		key = "error"
	}
	resp := &genai.Part{FunctionResponse: &genai.FunctionResponse{
		ID:       x.ToolUseID,
		Name:     name,
		Response: map[string]any{key: strings.Join(text, "\n")},
	}}
	return append([]*genai.Part{resp}, images...)
}

// toolNames indexes tool-use ids to tool names; function responses are matched by name.
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

func toolArgs(input string) (map[string]any, error) {
	if strings.TrimSpace(input) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func functionDeclaration(t aibridge.ToolDefinition) *genai.FunctionDeclaration {
	fd := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
	if t.Parameters == nil {
		return fd
	}
	if schema, err := mapToGenaiSchema(t.Parameters); err == nil {
		fd.Parameters = schema
	} else {
		fd.ParametersJsonSchema = t.Parameters
	}
	return fd
}

func uriMIMEType(uri string) string {
	if t := mime.TypeByExtension(path.Ext(uri)); t != "" {
		return t
	}
	return "image/png"
}

func clampInt32(n int64) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
