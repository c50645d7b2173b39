package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/responses"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// streamPolicy ends a failed stream with the error block only.
const streamPolicy = adapter.SwallowStreamError

// streamState is owned by one StreamResponse call.
type streamState struct {
	asm              *adapter.StreamAssembler
	mimeType         string
	responseID       string
	refusal          string
	final            *responses.Response
	didGenerateImage bool
	didWebSearch     bool
}

func (a *Adapter) consumeStream(ctx context.Context, stream *ssestream.Stream[responses.ResponseStreamEventUnion], mimeType string, yield func(aibridge.ContentBlock, error) bool) {
	st := &streamState{asm: adapter.NewStreamAssembler(), mimeType: mimeType}
	for stream.Next() {
		ev := stream.Current()
		switch ev.Type {
		case "response.failed":
			streamPolicy.Fail(yield, failedBlock(string(ev.Response.Error.Code), ev.Response.Error.Message), nil)
			return
		case "error":
			streamPolicy.Fail(yield, failedBlock(ev.Code, ev.Message), nil)
			return
		}
		if !a.handleEvent(ctx, st, ev, yield) {
			return
		}
	}
	if err := stream.Err(); err != nil {
		streamPolicy.Fail(yield, errorBlock(err), fmt.Errorf("openai: stream: %w", err))
		return
	}
	for _, b := range st.asm.CloseAll() {
		if !yield(normalizeToolUse(b), nil) {
			return
		}
	}
	var usage *aibridge.Usage
	if st.final != nil {
		if e, ok := statusFailure(st.final, st.refusal); ok {
			if !yield(e, nil) {
				return
			}
		}
		usage = a.usage(st.final, &output{didGenerateImage: st.didGenerateImage, didWebSearch: st.didWebSearch})
	} else if st.refusal != "" {
		if !yield(adapter.SoftFailure(adapter.CodeRefusal, st.refusal), nil) {
			return
		}
	}
	yield(aibridge.MetaBlock{ResponseID: st.responseID, Usage: usage}, nil)
}

// handleEvent applies one event and reports whether the consumer wants more.
func (a *Adapter) handleEvent(ctx context.Context, st *streamState, ev responses.ResponseStreamEventUnion, yield func(aibridge.ContentBlock, error) bool) bool {
	index := int(ev.OutputIndex)
	switch ev.Type {
	case "response.created":
		st.responseID = ev.Response.ID
		return yield(aibridge.MetaBlock{ResponseID: st.responseID}, nil)
	case "response.output_item.added":
		switch ev.Item.Type {
		case itemMessage:
			st.asm.Open(index, adapter.KindText, "", "")
		case itemReasoning:
			st.asm.Open(index, adapter.KindThinking, "", "")
		case itemFunctionCall:
			st.asm.Open(index, adapter.KindToolUse, ev.Item.CallID, ev.Item.Name)
		case itemWebSearch:
			st.didWebSearch = true
		}
	case "response.output_text.delta":
		return a.delta(ctx, st, index, adapter.KindText, ev, yield)
	case "response.reasoning_summary_text.delta":
		return a.delta(ctx, st, index, adapter.KindThinking, ev, yield)
	case "response.function_call_arguments.delta":
		return a.delta(ctx, st, index, adapter.KindToolUse, ev, yield)
	case "response.refusal.delta":
		st.refusal += ev.Delta
	case "response.output_item.done":
		return a.itemDone(ctx, st, index, ev.Item, yield)
	case "response.completed", "response.incomplete":
		resp := ev.Response
		st.final = &resp
		if st.responseID == "" {
			st.responseID = resp.ID
		}
	}
	return true
}

func (a *Adapter) delta(ctx context.Context, st *streamState, index int, kind adapter.BlockKind, ev responses.ResponseStreamEventUnion, yield func(aibridge.ContentBlock, error) bool) bool {
	b, err := st.asm.Delta(index, kind, ev.Delta)
	if errors.Is(err, adapter.ErrStreamEventIgnored) {
		a.ignored(ctx, fmt.Sprintf("%s at output index %d does not match an open item", ev.Type, index))
		return true
	}
	if b == nil {
		return true
	}
	return yield(b, nil)
}

func (a *Adapter) itemDone(ctx context.Context, st *streamState, index int, item responses.ResponseOutputItemUnion, yield func(aibridge.ContentBlock, error) bool) bool {
	switch item.Type {
	case itemReasoning:
		switch {
		case len(item.Summary) > 0 && item.EncryptedContent != "":
			if b, err := st.asm.Signature(index, item.EncryptedContent); err == nil && !yield(b, nil) {
				return false
			}
		case len(item.Summary) == 0 && item.EncryptedContent != "":
			if !yield(aibridge.RedactedThinkingBlock{Data: item.EncryptedContent}, nil) {
				return false
			}
		}
	case itemFunctionCall:
		if !st.asm.IsOpen(index) {
			a.ignored(ctx, fmt.Sprintf("function call at output index %d was never opened", index))
			return yield(aibridge.ToolUseBlock{ID: item.CallID, Name: item.Name, Input: jsonOrEmpty(item.Arguments)}, nil)
		}
		b, _ := st.asm.Close(index)
		t, _ := b.(aibridge.ToolUseBlock)
		if item.Arguments != "" {
			t.Input = item.Arguments
		}
		t.Input = jsonOrEmpty(t.Input)
		return yield(t, nil)
	case itemImageGeneration:
		if !yield(aibridge.ImageGenerationCallBlock{ID: item.ID}, nil) {
			return false
		}
		if item.Result != "" {
			st.didGenerateImage = true
			return yield(aibridge.ImageDataBlock{ID: item.ID, MIMEType: st.mimeType, Base64Data: item.Result}, nil)
		}
		return true
	}
	if st.asm.IsOpen(index) {
		_, _ = st.asm.Close(index)
	}
	return true
}

func (a *Adapter) ignored(ctx context.Context, msg string) {
	a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagStreamEventIgnored, Message: msg})
}

// normalizeToolUse fills an empty tool input with "{}" so it stays valid JSON.
func normalizeToolUse(b aibridge.ContentBlock) aibridge.ContentBlock {
	if t, ok := b.(aibridge.ToolUseBlock); ok {
		t.Input = jsonOrEmpty(t.Input)
		return t
	}
	return b
}

// requestedImageMIMEType returns the MIME type of images produced by the image generation tool in tools.
func requestedImageMIMEType(tools []responses.ToolUnionParam) string {
	for _, t := range tools {
		if t.OfImageGeneration != nil && t.OfImageGeneration.OutputFormat != "" {
			return "image/" + t.OfImageGeneration.OutputFormat
		}
	}
	return "image/png"
}
