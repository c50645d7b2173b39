package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/ollama/ollama/api"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// ParseResponse normalizes a finished chat reply: thinking first, then text and tool calls,
// then a max-tokens soft failure when generation hit num_predict, then a closing MetaBlock.
// Ollama responses carry no id, so the MetaBlock's ResponseID is empty.
func (a *Adapter) ParseResponse(ctx context.Context, resp *api.ChatResponse) (*aibridge.AIResponse, error) {
	if resp == nil {
		return nil, adapter.ErrMalformedResponse
	}
	msg := resp.Message
	var blocks []aibridge.ContentBlock
	if msg.Thinking != "" {
		blocks = append(blocks, aibridge.ThinkingBlock{Thinking: msg.Thinking})
	}
	if msg.Content != "" {
		blocks = append(blocks, aibridge.TextBlock{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, toolUse(tc))
	}
	if e, ok := finishFailure(resp.DoneReason); ok {
		blocks = append(blocks, e)
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	if msg.Content == "" && len(msg.ToolCalls) > 0 {
		a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagEmptyText, Message: "response carries tool calls only"})
	}
	model := resp.Model
	if model == "" {
		model = a.model.ID
	}
	usage := adapter.ComputeUsage(a.model, countsOf(resp))
	return adapter.FinishResponse("", model, resp.DoneReason, blocks, usage), nil
}

// countsOf returns nil until the final message, which is the only one carrying eval counts.
func countsOf(resp *api.ChatResponse) *adapter.TokenCounts {
	if resp == nil || !resp.Done {
		return nil
	}
	return &adapter.TokenCounts{
		Input:  int64(resp.PromptEvalCount),
		Output: int64(resp.EvalCount),
	}
}

// toolUse converts a tool call. Ollama rarely sends call ids; one is generated so the result can be
// matched later.
func toolUse(tc api.ToolCall) aibridge.ToolUseBlock {
	id := tc.ID
	if id == "" {
		id = adapter.NewToolCallID()
	}
	input := "{}"
	if args := tc.Function.Arguments.ToMap(); len(args) > 0 {
		if raw, err := json.Marshal(args); err == nil {
			input = string(raw)
		}
	}
	return aibridge.ToolUseBlock{ID: id, Name: tc.Function.Name, Input: input}
}

func finishFailure(reason string) (aibridge.ErrorBlock, bool) {
	if reason == "length" {
		return adapter.SoftFailure(adapter.CodeMaxTokens, "done_reason: length"), true
	}
	return aibridge.ErrorBlock{}, false
}

// errorBlock converts a stream failure. HTTP failures keep their status; an error the server
// reports inside a 200 stream is a vendor error.
func errorBlock(err error) aibridge.ErrorBlock {
	var se api.StatusError
	if errors.As(err, &se) && se.StatusCode >= http.StatusBadRequest {
		private := se.ErrorMessage
		if private == "" {
			private = err.Error()
		}
		return adapter.NewErrorBlock("", se.StatusCode, private)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return adapter.TransportErrorBlock(err)
	}
	private := err.Error()
	if se.ErrorMessage != "" {
		private = se.ErrorMessage
	}
	return adapter.NewErrorBlock(adapter.CodeVendorError, http.StatusInternalServerError, private)
}
