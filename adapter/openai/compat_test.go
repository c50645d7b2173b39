package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

func deepseek() aibridge.ModelConfig {
	return aibridge.ModelConfig{
		ID:              "deepseek-reasoner",
		IsThinking:      true,
		InputTokenCost:  aibridge.Float64(1),
		OutputTokenCost: aibridge.Float64(2),
	}
}

func newCompatServer(t *testing.T, handler http.HandlerFunc) (*Compat, *diagnostics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	diags := &diagnostics{}
	c, err := NewCompat(
		aibridge.VendorConfig{APIKey: "sk-test", BaseURL: srv.URL},
		deepseek(),
		WithDiagnosticSink(diags),
		WithHTTPClient(srv.Client()),
		WithRequestOptions(option.WithMaxRetries(0)),
	)
	require.NoError(t, err)
	return c, diags
}

func newCompat(t *testing.T, model aibridge.ModelConfig) (*Compat, *diagnostics) {
	t.Helper()
	diags := &diagnostics{}
	c, err := NewCompat(aibridge.VendorConfig{APIKey: "sk-test", BaseURL: "http://localhost:1"}, model, WithDiagnosticSink(diags))
	require.NoError(t, err)
	return c, diags
}

func TestCompat_Metadata(t *testing.T) {
	t.Parallel()
	c, _ := newCompat(t, deepseek())
	assert.Equal(t, CompatVendor, c.Vendor())
	assert.Equal(t, "deepseek-reasoner", c.Model().ID)
	assert.Equal(t, adapter.Capabilities{Thinking: true}, c.Capabilities())
	assert.False(t, adapter.Supports(c, adapter.OpGenerateImage))
	assert.False(t, adapter.Supports(c, adapter.OpMCPChat))
}

func TestCompat_Translate(t *testing.T) {
	t.Parallel()
	model := deepseek()
	model.IsVision = true
	c, diags := newCompat(t, model)
	params, err := c.Translate(context.Background(), &aibridge.Request{
		SystemPrompt:    "Be brief.",
		MaxTokens:       64,
		ReasoningEffort: aibridge.EffortLow,
		Params:          map[string]any{"stop": "END", "seed": 7},
		UseWebSearch:    true,
		Tools:           []aibridge.ToolDefinition{{Name: "lookup", Parameters: map[string]any{"type": "object"}}},
		Messages: []aibridge.Message{
			userText("Look it up"),
			{Role: aibridge.RoleAssistant, Content: []aibridge.ContentBlock{
				aibridge.ThinkingBlock{Thinking: "hidden"},
				aibridge.ToolUseBlock{ID: "call_1", Name: "lookup", Input: `{"q":"go"}`},
			}},
			{Role: aibridge.RoleUser, Content: []aibridge.ContentBlock{
				aibridge.ToolResultBlock{ToolUseID: "call_1", Content: []aibridge.ContentBlock{aibridge.TextBlock{Text: "found"}}},
			}},
			{Role: aibridge.RoleUser, Content: []aibridge.ContentBlock{
				aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "iVBORw0K"},
				aibridge.TextBlock{Text: "And this?"},
			}},
		},
	})
	require.NoError(t, err)
	body := wire(t, params)
	assert.Equal(t, "deepseek-reasoner", body.Get("model").String())
	assert.Equal(t, int64(64), body.Get("max_completion_tokens").Int())
	assert.Equal(t, "low", body.Get("reasoning_effort").String())
	assert.Equal(t, "END", body.Get("stop.0").String())
	assert.Equal(t, int64(7), body.Get("seed").Int())
	assert.Equal(t, "lookup", body.Get("tools.0.function.name").String())

	msgs := body.Get("messages")
	require.Equal(t, int64(5), msgs.Get("#").Int(), msgs.Raw)
	assert.Equal(t, "system", msgs.Get("0.role").String())
	assert.Equal(t, "Be brief.", msgs.Get("0.content").String())
	assert.Equal(t, "Look it up", msgs.Get("1.content").String())
	assert.Equal(t, "assistant", msgs.Get("2.role").String())
	assert.Equal(t, "call_1", msgs.Get("2.tool_calls.0.id").String())
	assert.Equal(t, `{"q":"go"}`, msgs.Get("2.tool_calls.0.function.arguments").String())
	assert.Equal(t, "tool", msgs.Get("3.role").String())
	assert.Equal(t, "call_1", msgs.Get("3.tool_call_id").String())
	assert.Equal(t, "found", msgs.Get("3.content").String())
	assert.Equal(t, "image_url", msgs.Get("4.content.0.type").String())
	assert.Equal(t, "data:image/png;base64,iVBORw0K", msgs.Get("4.content.0.image_url.url").String())
	assert.Equal(t, []string{adapter.DiagBlockDropped}, diags.kinds(), "web search is not available")
}

func TestCompat_ParseResponse(t *testing.T) {
	t.Parallel()
	c, diags := newCompat(t, deepseek())
	var completion openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "cmpl_1", "object": "chat.completion", "model": "deepseek-reasoner",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant", "content": "", "reasoning_content": "Need a lookup.",
			"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": ""}}]
		}}],
		"usage": {"prompt_tokens": 1000, "completion_tokens": 1000, "total_tokens": 2000}
	}`), &completion))
	out, err := c.ParseResponse(context.Background(), &completion)
	require.NoError(t, err)
	require.Len(t, out.Content, 3)
	assert.Equal(t, aibridge.ThinkingBlock{Thinking: "Need a lookup."}, out.Content[0])
	assert.Equal(t, aibridge.ToolUseBlock{ID: "call_1", Name: "lookup", Input: "{}"}, out.Content[1])
	assert.Equal(t, "tool_calls", out.StopReason)
	require.NotNil(t, out.Usage)
	assert.InDelta(t, 0.003, out.Usage.TotalCost, 1e-12)
	assert.Equal(t, []string{adapter.DiagEmptyText}, diags.kinds())

	_, err = c.ParseResponse(context.Background(), &openai.ChatCompletion{})
	require.ErrorIs(t, err, adapter.ErrMalformedResponse)
}

func TestCompat_ParseResponse_FinishReasons(t *testing.T) {
	t.Parallel()
	tests := []struct {
		reason, refusal, want string
	}{
		{reason: "length", want: adapter.CodeMaxTokens},
		{reason: "content_filter", want: adapter.CodeSafety},
		{reason: "stop", refusal: "No.", want: adapter.CodeRefusal},
		{reason: "stop"},
	}
	for _, tt := range tests {
		t.Run(tt.reason+tt.refusal, func(t *testing.T) {
			t.Parallel()
			e, ok := finishFailure(tt.reason, tt.refusal)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, e.Code)
		})
	}
}

func TestCompat_GenerateResponse(t *testing.T) {
	t.Parallel()
	c, _ := newCompatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"cmpl_2","object":"chat.completion","model":"deepseek-reasoner",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hi!"}}]}`)
	})
	resp, err := c.SendChat(context.Background(), &aibridge.Chat{Prompt: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "cmpl_2", resp.ResponseID)
	assert.Equal(t, "Hi!", aibridge.TextOf(resp.Message.Content))
	assert.Nil(t, resp.Usage)
}

// chunks writes each chunk as an unnamed server-sent event followed by the [DONE] marker.
func chunks(w http.ResponseWriter, data ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, d := range data {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", d)
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestCompat_StreamResponse(t *testing.T) {
	t.Parallel()
	c, diags := newCompatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"include_usage": true}, body["stream_options"])
		const head = `"object":"chat.completion.chunk","created":1,"model":"deepseek-reasoner"`
		chunks(w,
			`{"id":"cmpl_s1",`+head+`,"choices":[{"index":0,"delta":{"role":"assistant","reasoning_content":"Hmm."}}]}`,
			`{"id":"cmpl_s1",`+head+`,"choices":[{"index":0,"delta":{"content":"Let me check."}}]}`,
			`{"id":"cmpl_s1",`+head+`,"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":"}}]}}]}`,
			`{"id":"cmpl_s1",`+head+`,"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}}]}`,
			`{"id":"cmpl_s1",`+head+`,"choices":[{"index":0,"delta":{"tool_calls":[{"index":3,"function":{"arguments":"{}"}}]}}]}`,
			`{"id":"cmpl_s1",`+head+`,"choices":[{"index":0,"delta":{},"finish_reason":"length"}]}`,
			`{"id":"cmpl_s1",`+head+`,"choices":[],"usage":{"prompt_tokens":1000,"completion_tokens":500,"total_tokens":1500}}`,
		)
	})
	blocks, err := collect(t, c.StreamResponse(context.Background(), &aibridge.Request{Messages: []aibridge.Message{userText("Go")}}))
	require.NoError(t, err)
	require.Len(t, blocks, 6)
	assert.Equal(t, aibridge.MetaBlock{ResponseID: "cmpl_s1"}, blocks[0])
	assert.Equal(t, aibridge.ThinkingBlock{Thinking: "Hmm."}, blocks[1])
	assert.Equal(t, aibridge.TextBlock{Text: "Let me check."}, blocks[2])
	assert.Equal(t, aibridge.ToolUseBlock{ID: "call_1", Name: "lookup", Input: `{"q":"go"}`}, blocks[3])
	errBlock, ok := blocks[4].(aibridge.ErrorBlock)
	require.True(t, ok)
	assert.Equal(t, adapter.CodeMaxTokens, errBlock.Code)
	last, ok := blocks[5].(aibridge.MetaBlock)
	require.True(t, ok)
	require.NotNil(t, last.Usage)
	assert.InDelta(t, 0.002, last.Usage.TotalCost, 1e-12)
	assert.Equal(t, []string{adapter.DiagStreamEventIgnored}, diags.kinds())
}

func TestCompat_StreamResponse_HTTPError(t *testing.T) {
	t.Parallel()
	c, _ := newCompatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	})
	blocks, err := collect(t, c.StreamResponse(context.Background(), &aibridge.Request{Messages: []aibridge.Message{userText("Go")}}))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	errBlock, ok := blocks[0].(aibridge.ErrorBlock)
	require.True(t, ok)
	assert.Equal(t, "server_error", errBlock.Code)
	assert.Equal(t, adapter.PublicMessage(http.StatusServiceUnavailable), errBlock.PublicMessage)
}
