package aibridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBlockType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		block ContentBlock
		want  string
	}{
		{TextBlock{Text: "hi"}, "text"},
		{ThinkingBlock{Thinking: "hmm"}, "thinking"},
		{RedactedThinkingBlock{Data: "x"}, "redacted_thinking"},
		{ImageBlock{URL: "https://example.com/a.png"}, "image"},
		{ImageDataBlock{MIMEType: "image/png", Base64Data: "AA=="}, "image_data"},
		{ToolUseBlock{Name: "f", Input: "{}"}, "tool_use"},
		{ToolResultBlock{ToolUseID: "c1"}, "tool_result"},
		{ImageGenerationCallBlock{ID: "ig_1"}, "image_generation_call"},
		{MetaBlock{ResponseID: "r"}, "meta"},
		{ErrorBlock{PublicMessage: "oops"}, "error"},
		{nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BlockType(tt.block))
		})
	}
}

func TestTextOf(t *testing.T) {
	t.Parallel()
	blocks := []ContentBlock{
		TextBlock{Text: "Hello, "},
		ThinkingBlock{Thinking: "ignored"},
		ToolUseBlock{Name: "f", Input: "{}"},
		TextBlock{Text: "world"},
	}
	assert.Equal(t, "Hello, world", TextOf(blocks))
	assert.Empty(t, TextOf(nil))
}

func TestAIResponse_TextAndErrors(t *testing.T) {
	t.Parallel()
	resp := &AIResponse{Content: []ContentBlock{
		TextBlock{Text: "partial"},
		ErrorBlock{Code: "max_tokens", PublicMessage: "The response was cut short."},
	}}
	assert.Equal(t, "partial", resp.Text())
	errs := resp.ErrorBlocks()
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "max_tokens", errs[0].Code)
	}

	var nilResp *AIResponse
	assert.Empty(t, nilResp.Text())
	assert.Nil(t, nilResp.ErrorBlocks())
}

func TestNewTextMessage(t *testing.T) {
	t.Parallel()
	msg := NewTextMessage(RoleUser, "Hi")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, []ContentBlock{TextBlock{Text: "Hi"}}, msg.Content)
}
