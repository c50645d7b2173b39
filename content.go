package aibridge

import "strings"

// Wire tags of the content block variants.
const (
	TypeText                = "text"
	TypeThinking            = "thinking"
	TypeRedactedThinking    = "redacted_thinking"
	TypeImage               = "image"
	TypeImageData           = "image_data"
	TypeToolUse             = "tool_use"
	TypeToolResult          = "tool_result"
	TypeImageGenerationCall = "image_generation_call"
	TypeMeta                = "meta"
	TypeError               = "error"
)

// ContentBlock is a sealed interface for message content. Only package types implement it via isContentBlock().
type ContentBlock interface {
	isContentBlock()
}

// TextBlock holds plain text.
type TextBlock struct {
	Text string
}

func (TextBlock) isContentBlock() {}

// ThinkingBlock holds model reasoning. Signature is opaque vendor data required to send the block back.
type ThinkingBlock struct {
	Thinking  string
	Signature string
}

func (ThinkingBlock) isContentBlock() {}

// RedactedThinkingBlock holds encrypted reasoning that must be echoed back verbatim.
type RedactedThinkingBlock struct {
	Data string
}

func (RedactedThinkingBlock) isContentBlock() {}

// ImageBlock references an image by URL. GenerationID links the image to a vendor-side generation call.
type ImageBlock struct {
	URL          string
	GenerationID string
}

func (ImageBlock) isContentBlock() {}

// ImageDataBlock holds an inline base64 image.
type ImageDataBlock struct {
	ID         string
	MIMEType   string
	Base64Data string
}

func (ImageDataBlock) isContentBlock() {}

// ToolUseBlock is a model request to call a tool.
type ToolUseBlock struct {
	ID    string // Empty for vendors without call ids
	Name  string
	Input string // JSON-serialized arguments, never a decoded object
}

func (ToolUseBlock) isContentBlock() {}

// ToolResultBlock carries the result of a tool call back to the model.
type ToolResultBlock struct {
	ToolUseID string
	Content   []ContentBlock
	IsError   bool
}

func (ToolResultBlock) isContentBlock() {}

// ImageGenerationCallBlock references a vendor-side image generation call by id.
type ImageGenerationCallBlock struct {
	ID string
}

func (ImageGenerationCallBlock) isContentBlock() {}

// MetaBlock carries out-of-band data: the vendor response id and, at the end of a response, usage.
type MetaBlock struct {
	ResponseID string
	Usage      *Usage
}

func (MetaBlock) isContentBlock() {}

// ErrorBlock describes a failure. PublicMessage is safe to show to end users;
// PrivateMessage holds the vendor detail for logs.
type ErrorBlock struct {
	Code           string
	PublicMessage  string
	PrivateMessage string
}

func (ErrorBlock) isContentBlock() {}

// BlockType returns the wire tag of b, or "" for nil.
func BlockType(b ContentBlock) string {
	switch b.(type) {
	case TextBlock:
		return TypeText
	case ThinkingBlock:
		return TypeThinking
	case RedactedThinkingBlock:
		return TypeRedactedThinking
	case ImageBlock:
		return TypeImage
	case ImageDataBlock:
		return TypeImageData
	case ToolUseBlock:
		return TypeToolUse
	case ToolResultBlock:
		return TypeToolResult
	case ImageGenerationCallBlock:
		return TypeImageGenerationCall
	case MetaBlock:
		return TypeMeta
	case ErrorBlock:
		return TypeError
	default:
		return ""
	}
}

// TextOf concatenates the text blocks in blocks, ignoring everything else.
func TextOf(blocks []ContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if t, ok := block.(TextBlock); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
