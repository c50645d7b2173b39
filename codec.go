package aibridge

import (
	"encoding/json"
	"fmt"
)

// blockJSON is the flat wire shape of every block variant, discriminated by Type.
type blockJSON struct {
	Type           string            `json:"type"`
	Text           string            `json:"text,omitempty"`
	Thinking       string            `json:"thinking,omitempty"`
	Signature      string            `json:"signature,omitempty"`
	Data           string            `json:"data,omitempty"`
	URL            string            `json:"url,omitempty"`
	GenerationID   string            `json:"generationId,omitempty"`
	ID             string            `json:"id,omitempty"`
	MIMEType       string            `json:"mimeType,omitempty"`
	Base64Data     string            `json:"base64Data,omitempty"`
	Name           string            `json:"name,omitempty"`
	Input          *string           `json:"input,omitempty"`
	ToolUseID      string            `json:"toolUseId,omitempty"`
	Content        []json.RawMessage `json:"content,omitempty"`
	IsError        bool              `json:"isError,omitempty"`
	ResponseID     string            `json:"responseId,omitempty"`
	Usage          *Usage            `json:"usage,omitempty"`
	Code           string            `json:"code,omitempty"`
	PublicMessage  string            `json:"publicMessage,omitempty"`
	PrivateMessage string            `json:"privateMessage,omitempty"`
}

// MarshalBlock encodes b as a JSON object with a "type" discriminator.
func MarshalBlock(b ContentBlock) ([]byte, error) {
	var out blockJSON
	switch x := b.(type) {
	case TextBlock:
		out = blockJSON{Type: TypeText, Text: x.Text}
	case ThinkingBlock:
		out = blockJSON{Type: TypeThinking, Thinking: x.Thinking, Signature: x.Signature}
	case RedactedThinkingBlock:
		out = blockJSON{Type: TypeRedactedThinking, Data: x.Data}
	case ImageBlock:
		out = blockJSON{Type: TypeImage, URL: x.URL, GenerationID: x.GenerationID}
	case ImageDataBlock:
		out = blockJSON{Type: TypeImageData, ID: x.ID, MIMEType: x.MIMEType, Base64Data: x.Base64Data}
	case ToolUseBlock:
		input := x.Input
		out = blockJSON{Type: TypeToolUse, ID: x.ID, Name: x.Name, Input: &input}
	case ToolResultBlock:
		out = blockJSON{Type: TypeToolResult, ToolUseID: x.ToolUseID, IsError: x.IsError}
		for _, c := range x.Content {
			raw, err := MarshalBlock(c)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, raw)
		}
	case ImageGenerationCallBlock:
		out = blockJSON{Type: TypeImageGenerationCall, ID: x.ID}
	case MetaBlock:
		out = blockJSON{Type: TypeMeta, ResponseID: x.ResponseID, Usage: x.Usage}
	case ErrorBlock:
		out = blockJSON{Type: TypeError, Code: x.Code, PublicMessage: x.PublicMessage, PrivateMessage: x.PrivateMessage}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownBlockType, b)
	}
	return json.Marshal(out)
}

// UnmarshalBlock decodes a JSON object produced by MarshalBlock.
func UnmarshalBlock(data []byte) (ContentBlock, error) {
	var in blockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}
	switch in.Type {
	case TypeText:
		return TextBlock{Text: in.Text}, nil
	case TypeThinking:
		return ThinkingBlock{Thinking: in.Thinking, Signature: in.Signature}, nil
	case TypeRedactedThinking:
		return RedactedThinkingBlock{Data: in.Data}, nil
	case TypeImage:
		return ImageBlock{URL: in.URL, GenerationID: in.GenerationID}, nil
	case TypeImageData:
		return ImageDataBlock{ID: in.ID, MIMEType: in.MIMEType, Base64Data: in.Base64Data}, nil
	case TypeToolUse:
		if in.Input == nil {
			return nil, fmt.Errorf("%w: tool_use without input", ErrInvalidBlock)
		}
		return ToolUseBlock{ID: in.ID, Name: in.Name, Input: *in.Input}, nil
	case TypeToolResult:
		content, err := unmarshalBlocks(in.Content)
		if err != nil {
			return nil, err
		}
		return ToolResultBlock{ToolUseID: in.ToolUseID, Content: content, IsError: in.IsError}, nil
	case TypeImageGenerationCall:
		return ImageGenerationCallBlock{ID: in.ID}, nil
	case TypeMeta:
		return MetaBlock{ResponseID: in.ResponseID, Usage: in.Usage}, nil
	case TypeError:
		return ErrorBlock{Code: in.Code, PublicMessage: in.PublicMessage, PrivateMessage: in.PrivateMessage}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, in.Type)
	}
}

func unmarshalBlocks(raws []json.RawMessage) ([]ContentBlock, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]ContentBlock, 0, len(raws))
	for i, raw := range raws {
		b, err := UnmarshalBlock(raw)
		if err != nil {
			var probe struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(raw, &probe)
			return nil, &BlockError{Index: i, Type: probe.Type, Err: err}
		}
		out = append(out, b)
	}
	return out, nil
}

type messageJSON struct {
	Role    Role              `json:"role"`
	Content []json.RawMessage `json:"content"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{Role: m.Role, Content: make([]json.RawMessage, 0, len(m.Content))}
	for _, b := range m.Content {
		raw, err := MarshalBlock(b)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	content, err := unmarshalBlocks(in.Content)
	if err != nil {
		return err
	}
	m.Role = in.Role
	m.Content = content
	return nil
}
