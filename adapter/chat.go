package adapter

import (
	"fmt"

	"github.com/skosovsky/aibridge"
)

// BuildChatRequest assembles a request from chat: the history followed by one user turn
// holding the optional image and then the prompt text. Options other than Messages are copied.
func BuildChatRequest(chat *aibridge.Chat) (*aibridge.Request, error) {
	if chat == nil {
		return nil, fmt.Errorf("%w: chat must not be nil", ErrInvalidRequest)
	}
	req := chat.Options
	req.Messages = make([]aibridge.Message, 0, len(chat.History)+1)
	req.Messages = append(req.Messages, chat.History...)

	var turn []aibridge.ContentBlock
	switch img := chat.Image.(type) {
	case nil:
	case aibridge.ImageBlock, aibridge.ImageDataBlock:
		turn = append(turn, img)
	default:
		return nil, fmt.Errorf("%w: chat image must be an image block, got %q", ErrInvalidRequest, aibridge.BlockType(img))
	}
	if chat.Prompt != "" {
		turn = append(turn, aibridge.TextBlock{Text: chat.Prompt})
	}
	if len(turn) > 0 {
		req.Messages = append(req.Messages, aibridge.Message{Role: aibridge.RoleUser, Content: turn})
	}
	return &req, nil
}

// ChatResponseFrom folds resp into an assistant message. Meta blocks are dropped; their
// response id and usage move to the ChatResponse fields.
func ChatResponseFrom(resp *aibridge.AIResponse) *aibridge.ChatResponse {
	if resp == nil {
		return nil
	}
	content := make([]aibridge.ContentBlock, 0, len(resp.Content))
	for _, b := range resp.Content {
		if _, ok := b.(aibridge.MetaBlock); ok {
			continue
		}
		content = append(content, b)
	}
	return &aibridge.ChatResponse{
		ResponseID: resp.ID,
		Message:    aibridge.Message{Role: aibridge.RoleAssistant, Content: content},
		Usage:      resp.Usage,
	}
}

// FinishResponse appends the closing meta block to blocks and builds the response.
func FinishResponse(id, model, stopReason string, blocks []aibridge.ContentBlock, usage *aibridge.Usage) *aibridge.AIResponse {
	blocks = append(blocks, aibridge.MetaBlock{ResponseID: id, Usage: usage})
	return &aibridge.AIResponse{
		ID:         id,
		Model:      model,
		Content:    blocks,
		Usage:      usage,
		StopReason: stopReason,
	}
}
