package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// output collects the parts of one candidate by kind so they can be emitted in order.
type output struct {
	reasoning []aibridge.ContentBlock
	text      []aibridge.ContentBlock
	tools     []aibridge.ContentBlock
	images    []aibridge.ContentBlock
}

func (o *output) add(p *genai.Part) {
	switch {
	case p == nil:
	case p.Thought:
		if p.Text != "" || len(p.ThoughtSignature) > 0 {
			o.reasoning = append(o.reasoning, aibridge.ThinkingBlock{Thinking: p.Text, Signature: signature(p.ThoughtSignature)})
		}
	case p.FunctionCall != nil:
		o.tools = append(o.tools, toolUse(p.FunctionCall))
	case p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "image/"):
		o.images = append(o.images, aibridge.ImageDataBlock{
			ID:         strconv.Itoa(len(o.images)),
			MIMEType:   p.InlineData.MIMEType,
			Base64Data: base64.StdEncoding.EncodeToString(p.InlineData.Data),
		})
	case p.Text != "":
		o.text = append(o.text, aibridge.TextBlock{Text: p.Text})
	}
}

func (o *output) blocks() []aibridge.ContentBlock {
	out := make([]aibridge.ContentBlock, 0, len(o.reasoning)+len(o.text)+len(o.tools)+len(o.images)+2)
	out = append(out, o.reasoning...)
	out = append(out, o.text...)
	out = append(out, o.tools...)
	return append(out, o.images...)
}

// ParseResponse normalizes a GenerateContent reply from its first candidate: reasoning first, then
// text, then tool calls and generated images, then any soft failure and a closing MetaBlock.
// model is reported when the response carries no model version.
func (a *Adapter) ParseResponse(ctx context.Context, resp *genai.GenerateContentResponse, model string) (*aibridge.AIResponse, error) {
	if resp == nil {
		return nil, adapter.ErrMalformedResponse
	}
	var (
		out       output
		candidate *genai.Candidate
	)
	if len(resp.Candidates) > 0 {
		candidate = resp.Candidates[0]
	}
	if candidate != nil && candidate.Content != nil {
		for _, p := range candidate.Content.Parts {
			out.add(p)
		}
	}
	blocks := out.blocks()
	stopReason := ""
	if candidate != nil {
		stopReason = string(candidate.FinishReason)
		if e, ok := finishFailure(candidate.FinishReason, candidate.FinishMessage); ok {
			blocks = append(blocks, e)
		}
	}
	if e, ok := promptBlocked(resp.PromptFeedback); ok {
		stopReason = string(resp.PromptFeedback.BlockReason)
		blocks = append(blocks, e)
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	if len(out.text) == 0 && len(out.tools) > 0 {
		a.gate.Report(ctx, adapter.Diagnostic{Kind: adapter.DiagEmptyText, Message: "response carries tool calls only"})
	}
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	usage := adapter.ComputeUsage(a.model, countsOf(resp.UsageMetadata, len(out.images) > 0, searched(candidate)))
	return adapter.FinishResponse(resp.ResponseID, model, stopReason, blocks, usage), nil
}

// countsOf returns nil when the response carries no usage metadata.
func countsOf(u *genai.GenerateContentResponseUsageMetadata, image, webSearch bool) *adapter.TokenCounts {
	if u == nil {
		return nil
	}
	return &adapter.TokenCounts{
		Input:            int64(u.PromptTokenCount) + int64(u.ToolUsePromptTokenCount),
		Output:           int64(u.CandidatesTokenCount) + int64(u.ThoughtsTokenCount),
		DidGenerateImage: image,
		DidWebSearch:     webSearch,
	}
}

func searched(c *genai.Candidate) bool {
	return c != nil && c.GroundingMetadata != nil && len(c.GroundingMetadata.WebSearchQueries) > 0
}

// toolUse converts a function call. The Gemini API often omits call ids; one is generated so
// the result can be matched later.
func toolUse(fc *genai.FunctionCall) aibridge.ToolUseBlock {
	id := fc.ID
	if id == "" {
		id = adapter.NewToolCallID()
	}
	input := "{}"
	if len(fc.Args) > 0 {
		if raw, err := json.Marshal(fc.Args); err == nil {
			input = string(raw)
		}
	}
	return aibridge.ToolUseBlock{ID: id, Name: fc.Name, Input: input}
}

func signature(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func finishFailure(reason genai.FinishReason, message string) (aibridge.ErrorBlock, bool) {
	private := string(reason)
	if message != "" {
		private += ": " + message
	}
	switch reason {
	case genai.FinishReasonMaxTokens:
		return adapter.SoftFailure(adapter.CodeMaxTokens, private), true
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII, genai.FinishReasonImageSafety,
		genai.FinishReasonImageProhibitedContent, genai.FinishReasonImageRecitation:
		return adapter.SoftFailure(adapter.CodeSafety, private), true
	case genai.FinishReasonMalformedFunctionCall, genai.FinishReasonUnexpectedToolCall, genai.FinishReasonOther,
		genai.FinishReasonLanguage, genai.FinishReasonNoImage, genai.FinishReasonImageOther:
		return adapter.SoftFailure(adapter.CodeIncomplete, private), true
	default:
		return aibridge.ErrorBlock{}, false
	}
}

func promptBlocked(f *genai.GenerateContentResponsePromptFeedback) (aibridge.ErrorBlock, bool) {
	if f == nil || f.BlockReason == "" || f.BlockReason == genai.BlockedReasonUnspecified {
		return aibridge.ErrorBlock{}, false
	}
	private := "prompt blocked: " + string(f.BlockReason)
	if f.BlockReasonMessage != "" {
		private += ": " + f.BlockReasonMessage
	}
	return adapter.SoftFailure(adapter.CodeSafety, private), true
}

// errorBlock converts a request or stream failure. API errors carry the HTTP code and a
// canonical status such as RESOURCE_EXHAUSTED, which becomes the block code.
func errorBlock(err error) aibridge.ErrorBlock {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		private := apiErr.Message
		if private == "" {
			private = err.Error()
		}
		return adapter.NewErrorBlock(statusCode(apiErr.Status), apiErr.Code, private)
	}
	return adapter.TransportErrorBlock(err)
}

// statusCode lowercases a canonical status. Plain HTTP status lines ("404 Not Found") yield ""
// so the block code falls back to the HTTP status.
func statusCode(status string) string {
	if status == "" || strings.ContainsFunc(status, func(r rune) bool { return r != '_' && (r < 'A' || r > 'Z') }) {
		return ""
	}
	return strings.ToLower(status)
}
