package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type diagnostics struct {
	mu   sync.Mutex
	list []adapter.Diagnostic
}

func (d *diagnostics) Report(_ context.Context, diag adapter.Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = append(d.list, diag)
}

func (d *diagnostics) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.list))
	for _, x := range d.list {
		out = append(out, x.Kind)
	}
	return out
}

func qwen() aibridge.ModelConfig {
	return aibridge.ModelConfig{
		ID:              "qwen3",
		IsVision:        true,
		IsThinking:      true,
		InputTokenCost:  aibridge.Float64(1),
		OutputTokenCost: aibridge.Float64(2),
	}
}

func newAdapter(t *testing.T, model aibridge.ModelConfig, opts ...Option) (*Adapter, *diagnostics) {
	t.Helper()
	diags := &diagnostics{}
	a, err := New(aibridge.VendorConfig{}, model, append([]Option{WithDiagnosticSink(diags)}, opts...)...)
	require.NoError(t, err)
	return a, diags
}

// newServer starts an Ollama stub and returns an adapter pointed at it.
func newServer(t *testing.T, cfg aibridge.VendorConfig, model aibridge.ModelConfig, handler http.HandlerFunc) (*Adapter, *diagnostics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	diags := &diagnostics{}
	a, err := New(cfg, model, WithDiagnosticSink(diags), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return a, diags
}

func userText(text string) aibridge.Message {
	return aibridge.NewTextMessage(aibridge.RoleUser, text)
}

func collect(t *testing.T, seq func(func(aibridge.ContentBlock, error) bool)) ([]aibridge.ContentBlock, error) {
	t.Helper()
	var blocks []aibridge.ContentBlock
	for b, err := range seq {
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// body reads the request body as JSON.
func body(t *testing.T, r *http.Request) gjson.Result {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	return gjson.ParseBytes(raw)
}

// ndjson writes one JSON object per line, the framing of /api/chat.
func ndjson(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	for _, l := range lines {
		_, _ = fmt.Fprintln(w, l)
	}
}

func chatResponse(t *testing.T, raw string) *api.ChatResponse {
	t.Helper()
	var resp api.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return &resp
}

func ExampleAdapter_Translate() {
	a, _ := New(aibridge.VendorConfig{}, aibridge.ModelConfig{ID: "llama3.2"})
	r, _ := a.Translate(context.Background(), &aibridge.Request{
		SystemPrompt: "Be brief.",
		Messages:     []aibridge.Message{aibridge.NewTextMessage(aibridge.RoleUser, "Hello")},
	})
	fmt.Println(r.Model)
	fmt.Println(r.Messages[0].Role, r.Messages[1].Role)
	fmt.Println(r.Messages[1].Content)
	// Output:
	// llama3.2
	// system user
	// Hello
}

func TestNew_BadBaseURL(t *testing.T) {
	t.Parallel()
	_, err := New(aibridge.VendorConfig{BaseURL: "://nowhere"}, qwen())
	require.Error(t, err)
}

func TestAdapter_Metadata(t *testing.T) {
	t.Parallel()
	a, _ := newAdapter(t, qwen())
	assert.Equal(t, Vendor, a.Vendor())
	assert.Equal(t, "qwen3", a.Model().ID)
	assert.Equal(t, adapter.Capabilities{Vision: true, Thinking: true}, a.Capabilities())
	assert.False(t, adapter.Supports(a, adapter.OpGenerateImage))
	assert.False(t, adapter.Supports(a, adapter.OpEditImage))
	assert.False(t, adapter.Supports(a, adapter.OpMCPChat))
}

func TestTranslate_Defaults(t *testing.T) {
	t.Parallel()
	a, _ := newAdapter(t, qwen())
	r, err := a.Translate(context.Background(), &aibridge.Request{Messages: []aibridge.Message{userText("Hello")}})
	require.NoError(t, err)
	assert.Equal(t, "qwen3", r.Model)
	require.Len(t, r.Messages, 1)
	assert.Equal(t, "user", r.Messages[0].Role)
	assert.Nil(t, r.Options)
	assert.Nil(t, r.Think)
	assert.Nil(t, r.Stream)
	assert.Empty(t, r.Tools)
}

func TestTranslate_Options(t *testing.T) {
	t.Parallel()
	a, _ := newAdapter(t, qwen())
	r, err := a.Translate(context.Background(), &aibridge.Request{
		Model:       "llama3.3",
		MaxTokens:   100,
		Temperature: aibridge.Float64(0.5),
		Params:      map[string]any{"top_p": 0.9, "top_k": 40, "seed": 7, "stop": "END"},
		Messages:    []aibridge.Message{userText("Hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "llama3.3", r.Model)
	assert.Equal(t, map[string]any{
		"temperature": 0.5,
		"num_predict": int64(100),
		"top_p":       0.9,
		"top_k":       int64(40),
		"seed":        int64(7),
		"stop":        []string{"END"},
	}, r.Options)
}

func TestTranslate_Errors(t *testing.T) {
	t.Parallel()
	a, diags := newAdapter(t, qwen())
	_, err := a.Translate(context.Background(), nil)
	require.ErrorIs(t, err, adapter.ErrInvalidRequest)

	_, err = a.Translate(context.Background(), &aibridge.Request{
		Messages: []aibridge.Message{aibridge.NewTextMessage(aibridge.RoleSystem, "only system")},
	})
	require.ErrorIs(t, err, adapter.ErrNoMappableMessages)
	assert.Equal(t, []string{adapter.DiagBlockDropped}, diags.kinds())
}

func TestTranslate_Images(t *testing.T) {
	t.Parallel()
	resolver := adapter.ImageResolverFunc(func(_ context.Context, url string) (aibridge.ImageDataBlock, error) {
		if url == "https://example.com/broken.png" {
			return aibridge.ImageDataBlock{}, errors.New("404")
		}
		return aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "Zm9v"}, nil
	})
	a, diags := newAdapter(t, qwen(), WithImageResolver(resolver))
	r, err := a.Translate(context.Background(), &aibridge.Request{Messages: []aibridge.Message{
		{Role: aibridge.RoleUser, Content: []aibridge.ContentBlock{
			aibridge.TextBlock{Text: "Compare these."},
			aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "aGVsbG8="},
			aibridge.ImageBlock{URL: "data:image/png;base64,d29ybGQ="},
			aibridge.ImageBlock{URL: "https://example.com/cat.png"},
			aibridge.ImageBlock{URL: "https://example.com/broken.png"},
			aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "%%%"},
		}},
		{Role: aibridge.RoleAssistant, Content: []aibridge.ContentBlock{
			aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "aGVsbG8="},
			aibridge.TextBlock{Text: "Done."},
		}},
	}})
	require.NoError(t, err)
	require.Len(t, r.Messages, 2)
	assert.Equal(t, "Compare these.", r.Messages[0].Content)
	assert.Equal(t, []api.ImageData{api.ImageData("hello"), api.ImageData("world"), api.ImageData("foo")}, r.Messages[0].Images)
	assert.Empty(t, r.Messages[1].Images)
	assert.Equal(t, []string{
		adapter.DiagBlockDropped,
		adapter.DiagUnmappableContent,
		adapter.DiagUnmappableContent,
	}, diags.kinds())
}

func TestTranslate_VisionDisabledDropsImage(t *testing.T) {
	t.Parallel()
	model := qwen()
	model.IsVision = false
	a, diags := newAdapter(t, model)
	r, err := a.Translate(context.Background(), &aibridge.Request{Messages: []aibridge.Message{
		{Role: aibridge.RoleUser, Content: []aibridge.ContentBlock{
			aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "aGVsbG8="},
			aibridge.TextBlock{Text: "Describe"},
		}},
	}})
	require.NoError(t, err)
	require.Len(t, r.Messages, 1)
	assert.Equal(t, "Describe", r.Messages[0].Content)
	assert.Empty(t, r.Messages[0].Images)
	assert.Equal(t, []string{adapter.DiagBlockDropped}, diags.kinds())
}

func TestTranslate_ToolRoundTrip(t *testing.T) {
	t.Parallel()
	a, diags := newAdapter(t, qwen())
	r, err := a.Translate(context.Background(), &aibridge.Request{Messages: []aibridge.Message{
		userText("Weather in Paris?"),
		{Role: aibridge.RoleAssistant, Content: []aibridge.ContentBlock{
			aibridge.ThinkingBlock{Thinking: "one lookup"},
			aibridge.TextBlock{Text: "Checking."},
			aibridge.ToolUseBlock{ID: "call_1", Name: "get_weather", Input: `{"city":"Paris"}`},
			aibridge.ToolUseBlock{ID: "call_2", Name: "broken", Input: "not json"},
		}},
		{Role: aibridge.RoleUser, Content: []aibridge.ContentBlock{
			aibridge.ToolResultBlock{ToolUseID: "call_1", Content: []aibridge.ContentBlock{aibridge.TextBlock{Text: "Sunny"}}},
			aibridge.TextBlock{Text: "Thanks"},
			aibridge.ToolUseBlock{ID: "call_3", Name: "get_weather", Input: "{}"},
		}},
		{Role: aibridge.RoleUser, Content: []aibridge.ContentBlock{
			aibridge.ToolResultBlock{ToolUseID: "call_9", IsError: true, Content: []aibridge.ContentBlock{aibridge.TextBlock{Text: "boom"}}},
		}},
	}})
	require.NoError(t, err)
	require.Len(t, r.Messages, 5)

	asst := r.Messages[1]
	assert.Equal(t, "assistant", asst.Role)
	assert.Equal(t, "Checking.", asst.Content)
	assert.Equal(t, "one lookup", asst.Thinking)
	require.Len(t, asst.ToolCalls, 1)
	assert.Equal(t, "call_1", asst.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", asst.ToolCalls[0].Function.Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, asst.ToolCalls[0].Function.Arguments.ToMap())

	assert.Equal(t, api.Message{Role: "tool", Content: "Sunny", ToolCallID: "call_1", ToolName: "get_weather"}, r.Messages[2])
	assert.Equal(t, "user", r.Messages[3].Role)
	assert.Equal(t, "Thanks", r.Messages[3].Content)
	assert.Equal(t, api.Message{Role: "tool", Content: "error: boom", ToolCallID: "call_9"}, r.Messages[4])
	assert.Equal(t, []string{adapter.DiagUnmappableContent, adapter.DiagUnmappableContent}, diags.kinds())
}

func TestTranslate_Thinking(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		req  aibridge.Request
		want any
	}{
		{name: "none", want: nil},
		{name: "budget", req: aibridge.Request{BudgetTokens: aibridge.Int64(2048)}, want: true},
		{name: "effort", req: aibridge.Request{ReasoningEffort: aibridge.EffortHigh}, want: "high"},
		{name: "effort wins over budget", req: aibridge.Request{BudgetTokens: aibridge.Int64(20000), ReasoningEffort: aibridge.EffortLow}, want: "low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _ := newAdapter(t, qwen())
			req := tt.req
			req.Messages = []aibridge.Message{userText("Think")}
			r, err := a.Translate(context.Background(), &req)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, r.Think)
				return
			}
			require.NotNil(t, r.Think)
			assert.Equal(t, tt.want, r.Think.Value)
		})
	}
}

func TestTranslate_ThinkingWithoutCapability(t *testing.T) {
	t.Parallel()
	model := qwen()
	model.IsThinking = false
	a, diags := newAdapter(t, model)
	r, err := a.Translate(context.Background(), &aibridge.Request{
		ReasoningEffort: aibridge.EffortHigh,
		Messages:        []aibridge.Message{userText("Think")},
	})
	require.NoError(t, err)
	assert.Nil(t, r.Think)
	assert.Equal(t, []string{adapter.DiagBlockDropped}, diags.kinds())
}

func TestTranslate_Tools(t *testing.T) {
	t.Parallel()
	model := qwen()
	model.IsImageGeneration = true
	a, diags := newAdapter(t, model)
	r, err := a.Translate(context.Background(), &aibridge.Request{
		Messages: []aibridge.Message{userText("Weather?")},
		Tools: []aibridge.ToolDefinition{
			{Name: "get_weather", Description: "Get weather", Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
				"required":   []string{"city"},
			}},
			{Name: "now", Description: "Current time"},
		},
		UseWebSearch:       true,
		UseImageGeneration: true,
	})
	require.NoError(t, err)
	require.Len(t, r.Tools, 2)
	assert.Equal(t, "function", r.Tools[0].Type)
	assert.Equal(t, "get_weather", r.Tools[0].Function.Name)
	assert.Equal(t, "Get weather", r.Tools[0].Function.Description)
	assert.Equal(t, "object", r.Tools[0].Function.Parameters.Type)
	assert.Equal(t, []string{"city"}, r.Tools[0].Function.Parameters.Required)
	assert.Equal(t, "now", r.Tools[1].Function.Name)
	assert.Equal(t, "object", r.Tools[1].Function.Parameters.Type)
	assert.Equal(t, []string{adapter.DiagBlockDropped, adapter.DiagBlockDropped}, diags.kinds())
}

func TestParseResponse(t *testing.T) {
	t.Parallel()
	a, diags := newAdapter(t, qwen())
	resp := chatResponse(t, `{
		"model": "qwen3:8b",
		"message": {
			"role": "assistant",
			"content": "Let me check.",
			"thinking": "The user wants weather.",
			"tool_calls": [
				{"function": {"index": 0, "name": "get_weather", "arguments": {"city": "Paris"}}},
				{"id": "call_x", "function": {"index": 1, "name": "now", "arguments": {}}}
			]
		},
		"done": true,
		"done_reason": "length",
		"prompt_eval_count": 10,
		"eval_count": 20
	}`)
	got, err := a.ParseResponse(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, "qwen3:8b", got.Model)
	assert.Equal(t, "length", got.StopReason)
	require.Len(t, got.Content, 6)
	assert.Equal(t, aibridge.ThinkingBlock{Thinking: "The user wants weather."}, got.Content[0])
	assert.Equal(t, aibridge.TextBlock{Text: "Let me check."}, got.Content[1])

	call, ok := got.Content[2].(aibridge.ToolUseBlock)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(call.ID, "call_"))
	assert.Equal(t, "get_weather", call.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, call.Input)
	assert.Equal(t, aibridge.ToolUseBlock{ID: "call_x", Name: "now", Input: "{}"}, got.Content[3])

	failure, ok := got.Content[4].(aibridge.ErrorBlock)
	require.True(t, ok)
	assert.Equal(t, adapter.CodeMaxTokens, failure.Code)

	meta, ok := got.Content[5].(aibridge.MetaBlock)
	require.True(t, ok)
	assert.Empty(t, meta.ResponseID)
	require.NotNil(t, meta.Usage)
	assert.InDelta(t, 0.00005, meta.Usage.TotalCost, 1e-12)
	assert.Empty(t, diags.kinds())
}

func TestParseResponse_ToolOnlyAndMalformed(t *testing.T) {
	t.Parallel()
	a, diags := newAdapter(t, qwen())
	got, err := a.ParseResponse(context.Background(), chatResponse(t, `{
		"message": {"role": "assistant", "tool_calls": [{"function": {"name": "now", "arguments": {}}}]},
		"done": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, "qwen3", got.Model)
	assert.Empty(t, got.Text())
	assert.Equal(t, []string{adapter.DiagEmptyText}, diags.kinds())

	_, err = a.ParseResponse(context.Background(), chatResponse(t, `{"message": {"role": "assistant"}, "done": true, "done_reason": "stop"}`))
	require.ErrorIs(t, err, adapter.ErrMalformedResponse)
	_, err = a.ParseResponse(context.Background(), nil)
	require.ErrorIs(t, err, adapter.ErrMalformedResponse)
}

func TestGenerateResponse(t *testing.T) {
	t.Parallel()
	a, _ := newServer(t, aibridge.VendorConfig{APIKey: "ol-key"}, qwen(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer ol-key", r.Header.Get("Authorization"))
		b := body(t, r)
		assert.Equal(t, "qwen3", b.Get("model").String())
		assert.False(t, b.Get("stream").Bool())
		assert.Equal(t, "system", b.Get("messages.0.role").String())
		assert.Equal(t, "Hello", b.Get("messages.1.content").String())
		ndjson(w, `{"model":"qwen3","message":{"role":"assistant","content":"Hi there"},"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":20}`)
	})
	resp, err := a.GenerateResponse(context.Background(), &aibridge.Request{
		SystemPrompt: "Be brief.",
		Messages:     []aibridge.Message{userText("Hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Text())
	assert.Equal(t, "stop", resp.StopReason)
	require.NotNil(t, resp.Usage)
	assert.InDelta(t, 0.00005, resp.Usage.TotalCost, 1e-12)
}

func TestGenerateResponse_HTTPError(t *testing.T) {
	t.Parallel()
	a, _ := newServer(t, aibridge.VendorConfig{}, qwen(), func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"qwen3\" not found, try pulling it first"}`)
	})
	_, err := a.GenerateResponse(context.Background(), &aibridge.Request{Messages: []aibridge.Message{userText("Hello")}})
	require.Error(t, err)
	var se api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	block := errorBlock(err)
	assert.Equal(t, "http_404", block.Code)
	assert.Contains(t, block.PrivateMessage, "not found")
}

func TestSendChat(t *testing.T) {
	t.Parallel()
	a, _ := newServer(t, aibridge.VendorConfig{}, qwen(), func(w http.ResponseWriter, r *http.Request) {
		b := body(t, r)
		assert.Equal(t, "earlier", b.Get("messages.0.content").String())
		assert.Equal(t, "What is this?", b.Get("messages.1.content").String())
		assert.Equal(t, "aGVsbG8=", b.Get("messages.1.images.0").String())
		ndjson(w, `{"model":"qwen3","message":{"role":"assistant","content":"A greeting."},"done":true,"done_reason":"stop"}`)
	})
	resp, err := a.SendChat(context.Background(), &aibridge.Chat{
		History: []aibridge.Message{userText("earlier")},
		Prompt:  "What is this?",
		Image:   aibridge.ImageDataBlock{MIMEType: "image/png", Base64Data: "aGVsbG8="},
	})
	require.NoError(t, err)
	assert.Equal(t, "A greeting.", aibridge.TextOf(resp.Message.Content))
}

func TestStreamResponse(t *testing.T) {
	t.Parallel()
	a, diags := newServer(t, aibridge.VendorConfig{}, qwen(), func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, body(t, r).Get("stream").Bool())
		ndjson(w,
			`{"model":"qwen3","message":{"role":"assistant","content":"","thinking":"Let me"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"","thinking":" think"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"index":0,"name":"get_weather","arguments":{"city":"Paris"}}}]},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":20}`,
		)
	})
	blocks, err := collect(t, a.StreamResponse(context.Background(), &aibridge.Request{
		Messages: []aibridge.Message{userText("Hello")},
	}))
	require.NoError(t, err)
	require.Len(t, blocks, 6)
	assert.Equal(t, aibridge.ThinkingBlock{Thinking: "Let me"}, blocks[0])
	assert.Equal(t, aibridge.ThinkingBlock{Thinking: " think"}, blocks[1])
	assert.Equal(t, aibridge.TextBlock{Text: "Hel"}, blocks[2])
	assert.Equal(t, aibridge.TextBlock{Text: "lo"}, blocks[3])

	call, ok := blocks[4].(aibridge.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "get_weather", call.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, call.Input)

	meta, ok := blocks[5].(aibridge.MetaBlock)
	require.True(t, ok)
	require.NotNil(t, meta.Usage)
	assert.InDelta(t, 0.00005, meta.Usage.TotalCost, 1e-12)
	assert.Empty(t, diags.kinds())
}

func TestStreamResponse_MaxTokens(t *testing.T) {
	t.Parallel()
	a, _ := newServer(t, aibridge.VendorConfig{}, qwen(), func(w http.ResponseWriter, _ *http.Request) {
		ndjson(w,
			`{"model":"qwen3","message":{"role":"assistant","content":"Once upon"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"length","prompt_eval_count":5,"eval_count":1}`,
		)
	})
	blocks, err := collect(t, a.StreamResponse(context.Background(), &aibridge.Request{
		Messages: []aibridge.Message{userText("Tell a story")},
	}))
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	failure, ok := blocks[1].(aibridge.ErrorBlock)
	require.True(t, ok)
	assert.Equal(t, adapter.CodeMaxTokens, failure.Code)
	meta, ok := blocks[2].(aibridge.MetaBlock)
	require.True(t, ok)
	require.NotNil(t, meta.Usage)
	assert.InDelta(t, 0.000007, meta.Usage.TotalCost, 1e-12)
}

func TestStreamResponse_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		before    int
		wantCode  string
		wantInMsg string
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error":"server busy"}`+"\n")
			},
			wantCode:  "http_503",
			wantInMsg: "server busy",
		},
		{
			name: "error inside stream",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				ndjson(w,
					`{"model":"qwen3","message":{"role":"assistant","content":"Hi"},"done":false}`,
					`{"error":"model runner crashed"}`,
				)
			},
			before:    1,
			wantCode:  adapter.CodeVendorError,
			wantInMsg: "model runner crashed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _ := newServer(t, aibridge.VendorConfig{}, qwen(), tt.handler)
			blocks, err := collect(t, a.StreamResponse(context.Background(), &aibridge.Request{
				Messages: []aibridge.Message{userText("Hello")},
			}))
			require.NoError(t, err)
			require.Len(t, blocks, tt.before+1)
			failure, ok := blocks[tt.before].(aibridge.ErrorBlock)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, failure.Code)
			assert.Contains(t, failure.PrivateMessage, tt.wantInMsg)
			assert.NotEmpty(t, failure.PublicMessage)
		})
	}
}

func TestStreamResponse_TranslateErrorAndEarlyStop(t *testing.T) {
	t.Parallel()
	a, _ := newServer(t, aibridge.VendorConfig{}, qwen(), func(w http.ResponseWriter, _ *http.Request) {
		ndjson(w,
			`{"model":"qwen3","message":{"role":"assistant","content":"one"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"two"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
		)
	})
	_, err := collect(t, a.StreamResponse(context.Background(), &aibridge.Request{}))
	require.ErrorIs(t, err, adapter.ErrNoMappableMessages)

	var got []aibridge.ContentBlock
	for b, err := range a.StreamResponse(context.Background(), &aibridge.Request{Messages: []aibridge.Message{userText("Hello")}}) {
		require.NoError(t, err)
		got = append(got, b)
		break
	}
	assert.Equal(t, []aibridge.ContentBlock{aibridge.TextBlock{Text: "one"}}, got)
}

func TestErrorBlock_Transport(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, adapter.CodeCanceled, errorBlock(fmt.Errorf("post: %w", ctx.Err())).Code)
	assert.Equal(t, adapter.CodeVendorError, errorBlock(errors.New("unexpected EOF")).Code)
}
