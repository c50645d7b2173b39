package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

const streamPolicy = adapter.SwallowStreamError

// Assembler indexes. Tool calls arrive whole, so each is opened, filled and closed at once.
const (
	thinkingIndex = -1
	textIndex     = 0
	toolIndexBase = 1
)

// errConsumerDone aborts the client's read loop when the consumer stops iterating.
var errConsumerDone = errors.New("ollama: consumer stopped")

type streamState struct {
	asm   *adapter.StreamAssembler
	tools int
	final *api.ChatResponse
}

func (a *Adapter) consumeStream(ctx context.Context, req *api.ChatRequest, yield func(aibridge.ContentBlock, error) bool) {
	st := &streamState{asm: adapter.NewStreamAssembler()}
	err := a.client.Chat(ctx, req, func(chunk api.ChatResponse) error {
		if !a.handleChunk(ctx, st, chunk, yield) {
			return errConsumerDone
		}
		return nil
	})
	if errors.Is(err, errConsumerDone) {
		return
	}
	if err != nil {
		streamPolicy.Fail(yield, errorBlock(err), fmt.Errorf("ollama: stream: %w", err))
		return
	}
	st.asm.CloseAll()
	var reason string
	if st.final != nil {
		reason = st.final.DoneReason
	}
	if e, ok := finishFailure(reason); ok {
		if !yield(e, nil) {
			return
		}
	}
	yield(aibridge.MetaBlock{Usage: adapter.ComputeUsage(a.model, countsOf(st.final))}, nil)
}

// handleChunk applies one streamed message and reports whether the consumer wants more.
func (a *Adapter) handleChunk(ctx context.Context, st *streamState, chunk api.ChatResponse, yield func(aibridge.ContentBlock, error) bool) bool {
	if chunk.Done {
		st.final = &chunk
	}
	msg := chunk.Message
	if msg.Thinking != "" {
		if !st.asm.IsOpen(thinkingIndex) {
			st.asm.Open(thinkingIndex, adapter.KindThinking, "", "")
		}
		if b, _ := st.asm.Delta(thinkingIndex, adapter.KindThinking, msg.Thinking); b != nil && !yield(b, nil) {
			return false
		}
	}
	if msg.Content != "" {
		if !st.asm.IsOpen(textIndex) {
			st.asm.Open(textIndex, adapter.KindText, "", "")
		}
		if b, _ := st.asm.Delta(textIndex, adapter.KindText, msg.Content); b != nil && !yield(b, nil) {
			return false
		}
	}
	for _, tc := range msg.ToolCalls {
		call := toolUse(tc)
		index := toolIndexBase + st.tools
		st.tools++
		st.asm.Open(index, adapter.KindToolUse, call.ID, call.Name)
		if _, err := st.asm.Delta(index, adapter.KindToolUse, call.Input); err != nil {
			a.gate.Report(ctx, adapter.Diagnostic{
				Kind:    adapter.DiagStreamEventIgnored,
				Message: "tool call " + call.Name + " could not be buffered",
			})
			continue
		}
		if b, _ := st.asm.Close(index); b != nil && !yield(b, nil) {
			return false
		}
	}
	return true
}
