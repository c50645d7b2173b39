package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// Output item types the parser maps.
const (
	itemMessage         = "message"
	itemReasoning       = "reasoning"
	itemFunctionCall    = "function_call"
	itemImageGeneration = "image_generation_call"
	itemWebSearch       = "web_search_call"
)

// output is the ordered content of a response split into buckets.
type output struct {
	reasoning, text, tools, images []aibridge.ContentBlock
	refusal                        string
	didGenerateImage               bool
	didWebSearch                   bool
}

func (o *output) add(item responses.ResponseOutputItemUnion, mimeType string) {
	switch item.Type {
	case itemReasoning:
		if b, ok := reasoningBlock(item); ok {
			o.reasoning = append(o.reasoning, b)
		}
	case itemMessage:
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				if c.Text != "" {
					o.text = append(o.text, aibridge.TextBlock{Text: c.Text})
				}
			case "refusal":
				o.refusal += c.Refusal
			}
		}
	case itemFunctionCall:
		o.tools = append(o.tools, aibridge.ToolUseBlock{ID: item.CallID, Name: item.Name, Input: jsonOrEmpty(item.Arguments)})
	case itemImageGeneration:
		o.images = append(o.images, aibridge.ImageGenerationCallBlock{ID: item.ID})
		if item.Result != "" {
			o.didGenerateImage = true
			o.images = append(o.images, aibridge.ImageDataBlock{ID: item.ID, MIMEType: mimeType, Base64Data: item.Result})
		}
	case itemWebSearch:
		o.didWebSearch = true
	}
}

func (o *output) blocks() []aibridge.ContentBlock {
	out := make([]aibridge.ContentBlock, 0, len(o.reasoning)+len(o.text)+len(o.tools)+len(o.images)+2)
	out = append(out, o.reasoning...)
	out = append(out, o.text...)
	out = append(out, o.tools...)
	return append(out, o.images...)
}

// ParseResponse normalizes a Responses API reply: reasoning summaries, text, function calls and
// generated images in that order, then any soft failure and a closing MetaBlock.
func (a *Adapter) ParseResponse(ctx context.Context, resp *responses.Response) (*aibridge.AIResponse, error) {
	if resp == nil {
		return nil, adapter.ErrMalformedResponse
	}
	mimeType := imageMIMEType(resp.Tools)
	var o output
	for _, item := range resp.Output {
		o.add(item, mimeType)
	}
	blocks := o.blocks()
	if e, ok := statusFailure(resp, o.refusal); ok {
		blocks = append(blocks, e)
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	if len(o.text) == 0 && len(o.tools) > 0 {
		a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagEmptyText, Message: "response carries tool calls only"})
	}
	return adapter.FinishResponse(resp.ID, string(resp.Model), stopReason(resp), blocks, a.usage(resp, &o)), nil
}

func (a *Adapter) usage(resp *responses.Response, o *output) *aibridge.Usage {
	if !resp.JSON.Usage.Valid() {
		return nil
	}
	return adapter.ComputeUsage(a.model, &adapter.TokenCounts{
		Input:            resp.Usage.InputTokens,
		Output:           resp.Usage.OutputTokens,
		DidGenerateImage: o.didGenerateImage,
		DidWebSearch:     o.didWebSearch,
	})
}

// reasoningBlock keeps the summary as thinking text and the encrypted content as its signature.
// A reasoning item with no summary becomes a redacted block.
func reasoningBlock(item responses.ResponseOutputItemUnion) (aibridge.ContentBlock, bool) {
	var sb strings.Builder
	for _, s := range item.Summary {
		sb.WriteString(s.Text)
	}
	switch {
	case sb.Len() > 0:
		return aibridge.ThinkingBlock{Thinking: sb.String(), Signature: item.EncryptedContent}, true
	case item.EncryptedContent != "":
		return aibridge.RedactedThinkingBlock{Data: item.EncryptedContent}, true
	default:
		return nil, false
	}
}

// imageMIMEType reads the output format of the image generation tool echoed in the response.
func imageMIMEType(tools []responses.ToolUnion) string {
	for _, t := range tools {
		if t.Type == "image_generation" && t.OutputFormat != "" {
			return "image/" + t.OutputFormat
		}
	}
	return "image/png"
}

func stopReason(resp *responses.Response) string {
	if resp.Status == responses.ResponseStatusIncomplete && resp.IncompleteDetails.Reason != "" {
		return resp.IncompleteDetails.Reason
	}
	return string(resp.Status)
}

// statusFailure maps a non-completed status, or a refusal inside a completed message.
func statusFailure(resp *responses.Response, refusal string) (aibridge.ErrorBlock, bool) {
	switch resp.Status {
	case responses.ResponseStatusIncomplete:
		switch resp.IncompleteDetails.Reason {
		case "max_output_tokens":
			return adapter.SoftFailure(adapter.CodeMaxTokens, resp.IncompleteDetails.Reason), true
		case "content_filter":
			return adapter.SoftFailure(adapter.CodeSafety, resp.IncompleteDetails.Reason), true
		default:
			return adapter.SoftFailure(adapter.CodeIncomplete, resp.IncompleteDetails.Reason), true
		}
	case responses.ResponseStatusFailed:
		return failedBlock(string(resp.Error.Code), resp.Error.Message), true
	case responses.ResponseStatusCancelled:
		return adapter.SoftFailure(adapter.CodeCanceled, string(resp.Status)), true
	}
	if refusal != "" {
		return adapter.SoftFailure(adapter.CodeRefusal, refusal), true
	}
	return aibridge.ErrorBlock{}, false
}

// failedBlock builds the error block of a response that failed on the vendor side.
func failedBlock(code, message string) aibridge.ErrorBlock {
	status := 400
	switch code {
	case "server_error", "":
		status = 500
	case "rate_limit_exceeded":
		status = 429
	}
	if message == "" {
		message = code
	}
	return adapter.NewErrorBlock(code, status, message)
}

// errorBlock converts a request or stream failure.
func errorBlock(err error) aibridge.ErrorBlock {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return adapter.ErrorFromJSON(apiErr.StatusCode, apiErr.RawJSON(), apiErr.Error())
	}
	msg := err.Error()
	if i := strings.Index(msg, "{"); i >= 0 && strings.Contains(msg[:i], "error while streaming") {
		e := adapter.ErrorFromJSON(0, msg[i:], msg)
		return failedBlock(e.Code, e.PrivateMessage)
	}
	return adapter.TransportErrorBlock(err)
}
