package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

const streamPolicy = adapter.SwallowStreamError

// Assembler indexes. Function calls arrive whole, so each is opened, filled and closed at once.
const (
	thinkingIndex = -1
	textIndex     = 0
	toolIndexBase = 1
)

type streamState struct {
	asm          *adapter.StreamAssembler
	responseID   string
	finishReason genai.FinishReason
	finishMsg    string
	blocked      *genai.GenerateContentResponsePromptFeedback
	usage        *genai.GenerateContentResponseUsageMetadata
	tools        int
	images       int
	webSearch    bool
}

func (a *Adapter) consumeStream(ctx context.Context, stream iter.Seq2[*genai.GenerateContentResponse, error], yield func(aibridge.ContentBlock, error) bool) {
	st := &streamState{asm: adapter.NewStreamAssembler()}
	for chunk, err := range stream {
		if err != nil {
			streamPolicy.Fail(yield, errorBlock(err), fmt.Errorf("gemini: stream: %w", err))
			return
		}
		if !a.handleChunk(ctx, st, chunk, yield) {
			return
		}
	}
	st.asm.CloseAll()
	if e, ok := finishFailure(st.finishReason, st.finishMsg); ok {
		if !yield(e, nil) {
			return
		}
	}
	if e, ok := promptBlocked(st.blocked); ok {
		if !yield(e, nil) {
			return
		}
	}
	usage := adapter.ComputeUsage(a.model, countsOf(st.usage, st.images > 0, st.webSearch))
	yield(aibridge.MetaBlock{ResponseID: st.responseID, Usage: usage}, nil)
}

// handleChunk applies one streamed response and reports whether the consumer wants more.
func (a *Adapter) handleChunk(ctx context.Context, st *streamState, chunk *genai.GenerateContentResponse, yield func(aibridge.ContentBlock, error) bool) bool {
	if chunk == nil {
		return true
	}
	if st.responseID == "" && chunk.ResponseID != "" {
		st.responseID = chunk.ResponseID
		if !yield(aibridge.MetaBlock{ResponseID: chunk.ResponseID}, nil) {
			return false
		}
	}
	if chunk.UsageMetadata != nil {
		st.usage = chunk.UsageMetadata
	}
	if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
		st.blocked = chunk.PromptFeedback
	}
	if len(chunk.Candidates) == 0 || chunk.Candidates[0] == nil {
		return true
	}
	c := chunk.Candidates[0]
	if c.FinishReason != "" {
		st.finishReason = c.FinishReason
		st.finishMsg = c.FinishMessage
	}
	if searched(c) {
		st.webSearch = true
	}
	if c.Content == nil {
		return true
	}
	for _, p := range c.Content.Parts {
		if b := a.partBlock(ctx, st, p); b != nil {
			if !yield(b, nil) {
				return false
			}
		}
	}
	return true
}

// partBlock turns one streamed part into the block to emit, or nil.
func (a *Adapter) partBlock(ctx context.Context, st *streamState, p *genai.Part) aibridge.ContentBlock {
	switch {
	case p == nil:
		return nil
	case p.Thought:
		if !st.asm.IsOpen(thinkingIndex) {
			st.asm.Open(thinkingIndex, adapter.KindThinking, "", "")
		}
		if p.Text != "" {
			b, _ := st.asm.Delta(thinkingIndex, adapter.KindThinking, p.Text)
			return b
		}
		if len(p.ThoughtSignature) > 0 {
			b, _ := st.asm.Signature(thinkingIndex, signature(p.ThoughtSignature))
			return b
		}
		return nil
	case p.FunctionCall != nil:
		call := toolUse(p.FunctionCall)
		index := toolIndexBase + st.tools
		st.tools++
		st.asm.Open(index, adapter.KindToolUse, call.ID, call.Name)
		if _, err := st.asm.Delta(index, adapter.KindToolUse, call.Input); err != nil {
			a.ignored(ctx, "function call "+call.Name+" could not be buffered")
			return nil
		}
		b, _ := st.asm.Close(index)
		return b
	case p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "image/"):
		b := aibridge.ImageDataBlock{
			ID:         strconv.Itoa(st.images),
			MIMEType:   p.InlineData.MIMEType,
			Base64Data: base64.StdEncoding.EncodeToString(p.InlineData.Data),
		}
		st.images++
		return b
	case p.Text != "":
		if !st.asm.IsOpen(textIndex) {
			st.asm.Open(textIndex, adapter.KindText, "", "")
		}
		b, _ := st.asm.Delta(textIndex, adapter.KindText, p.Text)
		return b
	case len(p.ThoughtSignature) > 0:
		return nil
	default:
		a.ignored(ctx, "part without text, function call or image")
		return nil
	}
}

func (a *Adapter) ignored(ctx context.Context, msg string) {
	a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagStreamEventIgnored, Message: msg})
}
