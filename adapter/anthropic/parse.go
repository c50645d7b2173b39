package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// stopContextWindow is returned by newer models; the SDK has no constant for it yet.
const stopContextWindow anthropic.StopReason = "model_context_window_exceeded"

// ParseResponse normalizes a Messages API reply: reasoning first, then text, then tool calls,
// then any soft failure and a closing MetaBlock.
func (a *Adapter) ParseResponse(ctx context.Context, msg *anthropic.Message) (*aibridge.AIResponse, error) {
	if msg == nil {
		return nil, adapter.ErrMalformedResponse
	}
	var reasoning, text, tools []aibridge.ContentBlock
	for _, b := range msg.Content {
		switch b.Type {
		case "thinking":
			reasoning = append(reasoning, aibridge.ThinkingBlock{Thinking: b.Thinking, Signature: b.Signature})
		case "redacted_thinking":
			reasoning = append(reasoning, aibridge.RedactedThinkingBlock{Data: b.Data})
		case "text":
			if b.Text != "" {
				text = append(text, aibridge.TextBlock{Text: b.Text})
			}
		case "tool_use":
			tools = append(tools, aibridge.ToolUseBlock{ID: b.ID, Name: b.Name, Input: toolInput(string(b.Input))})
		}
	}
	blocks := make([]aibridge.ContentBlock, 0, len(reasoning)+len(text)+len(tools)+2)
	blocks = append(blocks, reasoning...)
	blocks = append(blocks, text...)
	blocks = append(blocks, tools...)
	if e, ok := softFailure(msg.StopReason); ok {
		blocks = append(blocks, e)
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	if len(text) == 0 && len(tools) > 0 {
		a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagEmptyText, Message: "response carries tool calls only"})
	}
	var counts *adapter.TokenCounts
	if msg.JSON.Usage.Valid() {
		counts = countsOf(msg.Usage.InputTokens+msg.Usage.CacheCreationInputTokens+msg.Usage.CacheReadInputTokens,
			msg.Usage.OutputTokens, msg.Usage.ServerToolUse.WebSearchRequests)
	}
	usage := adapter.ComputeUsage(a.model, counts)
	return adapter.FinishResponse(msg.ID, string(msg.Model), string(msg.StopReason), blocks, usage), nil
}

func countsOf(input, output, webSearches int64) *adapter.TokenCounts {
	return &adapter.TokenCounts{Input: input, Output: output, DidWebSearch: webSearches > 0}
}

func toolInput(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "{}"
	}
	return raw
}

func softFailure(reason anthropic.StopReason) (aibridge.ErrorBlock, bool) {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return adapter.SoftFailure(adapter.CodeMaxTokens, string(reason)), true
	case anthropic.StopReasonRefusal:
		return adapter.SoftFailure(adapter.CodeRefusal, string(reason)), true
	case anthropic.StopReasonPauseTurn:
		return adapter.SoftFailure(adapter.CodeIncomplete, string(reason)), true
	case stopContextWindow:
		return adapter.SoftFailure(adapter.CodeContextWindow, string(reason)), true
	default:
		return aibridge.ErrorBlock{}, false
	}
}

// sseErrorStatus maps the error type of an in-stream "error" event to the HTTP status the same
// error carries on a plain request.
var sseErrorStatus = map[string]int{
	"invalid_request_error": 400,
	"authentication_error":  401,
	"permission_error":      403,
	"not_found_error":       404,
	"request_too_large":     413,
	"rate_limit_error":      429,
	"api_error":             500,
	"overloaded_error":      529,
}

// errorBlock converts a request or stream failure.
func errorBlock(err error) aibridge.ErrorBlock {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return adapter.ErrorFromJSON(apiErr.StatusCode, apiErr.RawJSON(), apiErr.Error())
	}
	msg := err.Error()
	if i := strings.Index(msg, "{"); i >= 0 && strings.Contains(msg[:i], "error while streaming") {
		raw := msg[i:]
		e := adapter.ErrorFromJSON(0, raw, msg)
		if status, ok := sseErrorStatus[e.Code]; ok {
			return adapter.ErrorFromJSON(status, raw, msg)
		}
		return e
	}
	return adapter.TransportErrorBlock(err)
}
