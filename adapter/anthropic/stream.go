package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// streamPolicy re-raises the transport error after the error block so callers of this
// vendor can keep treating a failed stream as an error.
const streamPolicy = adapter.ReraiseStreamError

// streamState is owned by one StreamResponse call.
type streamState struct {
	asm         *adapter.StreamAssembler
	responseID  string
	stopReason  anthropic.StopReason
	input       int64
	output      int64
	webSearches int64
	usageSeen   bool
}

func (a *Adapter) consumeStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], yield func(aibridge.ContentBlock, error) bool) {
	st := &streamState{asm: adapter.NewStreamAssembler()}
	for stream.Next() {
		if !a.handleEvent(ctx, st, stream.Current(), yield) {
			return
		}
	}
	if err := stream.Err(); err != nil {
		streamPolicy.Fail(yield, errorBlock(err), fmt.Errorf("anthropic: stream: %w", err))
		return
	}
	for _, b := range st.asm.CloseAll() {
		if !yield(normalizeToolUse(b), nil) {
			return
		}
	}
	if e, ok := softFailure(st.stopReason); ok {
		if !yield(e, nil) {
			return
		}
	}
	var usage *aibridge.Usage
	if st.usageSeen {
		usage = adapter.ComputeUsage(a.model, countsOf(st.input, st.output, st.webSearches))
	}
	yield(aibridge.MetaBlock{ResponseID: st.responseID, Usage: usage}, nil)
}

// handleEvent applies one event and reports whether the consumer wants more.
func (a *Adapter) handleEvent(ctx context.Context, st *streamState, ev anthropic.MessageStreamEventUnion, yield func(aibridge.ContentBlock, error) bool) bool {
	index := int(ev.Index)
	switch ev.Type {
	case "message_start":
		st.responseID = ev.Message.ID
		if ev.Message.JSON.Usage.Valid() {
			u := ev.Message.Usage
			st.input = u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
			st.output = u.OutputTokens
			st.usageSeen = true
		}
		return yield(aibridge.MetaBlock{ResponseID: st.responseID}, nil)
	case "content_block_start":
		cb := ev.ContentBlock
		switch cb.Type {
		case "text":
			st.asm.Open(index, adapter.KindText, "", "")
			if cb.Text != "" {
				return yield(aibridge.TextBlock{Text: cb.Text}, nil)
			}
		case "thinking":
			st.asm.Open(index, adapter.KindThinking, "", "")
		case "tool_use":
			st.asm.Open(index, adapter.KindToolUse, cb.ID, cb.Name)
		case "redacted_thinking":
			return yield(aibridge.RedactedThinkingBlock{Data: cb.Data}, nil)
		default:
			a.ignored(ctx, "content block type "+cb.Type+" is not mapped")
		}
	case "content_block_delta":
		var (
			b   aibridge.ContentBlock
			err error
		)
		switch ev.Delta.Type {
		case "text_delta":
			b, err = st.asm.Delta(index, adapter.KindText, ev.Delta.Text)
		case "thinking_delta":
			b, err = st.asm.Delta(index, adapter.KindThinking, ev.Delta.Thinking)
		case "signature_delta":
			b, err = st.asm.Signature(index, ev.Delta.Signature)
		case "input_json_delta":
			b, err = st.asm.Delta(index, adapter.KindToolUse, ev.Delta.PartialJSON)
		default:
			return true
		}
		if errors.Is(err, adapter.ErrStreamEventIgnored) {
			a.ignored(ctx, fmt.Sprintf("%s at index %d does not match an open block", ev.Delta.Type, index))
			return true
		}
		if b != nil {
			return yield(b, nil)
		}
	case "content_block_stop":
		b, err := st.asm.Close(index)
		if err != nil {
			a.ignored(ctx, fmt.Sprintf("stop at index %d without an open block", index))
			return true
		}
		if b != nil {
			return yield(normalizeToolUse(b), nil)
		}
	case "message_delta":
		if ev.Delta.StopReason != "" {
			st.stopReason = ev.Delta.StopReason
		}
		if !ev.JSON.Usage.Valid() {
			return true
		}
		u := ev.Usage
		if in := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens; in > st.input {
			st.input = in
		}
		st.output = max(st.output, u.OutputTokens)
		st.webSearches = max(st.webSearches, u.ServerToolUse.WebSearchRequests)
		st.usageSeen = true
	}
	return true
}

func (a *Adapter) ignored(ctx context.Context, msg string) {
	a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagStreamEventIgnored, Message: msg})
}

// normalizeToolUse fills an empty tool input with "{}" so it stays valid JSON.
func normalizeToolUse(b aibridge.ContentBlock) aibridge.ContentBlock {
	if t, ok := b.(aibridge.ToolUseBlock); ok {
		t.Input = toolInput(t.Input)
		return t
	}
	return b
}
