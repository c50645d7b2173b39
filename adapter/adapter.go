package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/skosovsky/aibridge"
)

// Adapter is the vendor-neutral surface every vendor package implements.
// Implementations are safe for concurrent use; each call owns its own stream state.
type Adapter interface {
	// Vendor returns the vendor name, e.g. "openai".
	Vendor() string
	// Model returns the model configuration bound at construction.
	Model() aibridge.ModelConfig
	// Capabilities returns the current capability flags.
	Capabilities() Capabilities
	// GenerateResponse performs a single non-streaming call.
	GenerateResponse(ctx context.Context, req *aibridge.Request) (*aibridge.AIResponse, error)
	// SendChat sends history plus the current prompt and folds the answer into an assistant message.
	SendChat(ctx context.Context, chat *aibridge.Chat) (*aibridge.ChatResponse, error)
	// StreamResponse streams normalized blocks. The first block is a MetaBlock with the response id
	// and the last successful block is a MetaBlock with usage.
	StreamResponse(ctx context.Context, req *aibridge.Request) iter.Seq2[aibridge.ContentBlock, error]
}

// ImageGenerator is implemented by adapters that can generate images from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *aibridge.ImageRequest) (*aibridge.AIResponse, error)
}

// ImageEditor is implemented by adapters that can edit images.
type ImageEditor interface {
	EditImage(ctx context.Context, req *aibridge.ImageEditRequest) (*aibridge.AIResponse, error)
}

// MCPChatter is implemented by adapters whose vendor can call remote MCP servers.
type MCPChatter interface {
	SendMCPChat(ctx context.Context, chat *aibridge.Chat, servers []aibridge.MCPServer) (*aibridge.ChatResponse, error)
}

// Sentinel errors for adapter implementations. Callers should use errors.Is.
var (
	ErrMissingAPIKey        = errors.New("adapter: api key is required")
	ErrNoMappableMessages   = errors.New("adapter: no messages left after mapping")
	ErrMalformedResponse    = errors.New("adapter: response contains no extractable content")
	ErrUnsupportedOperation = errors.New("adapter: operation not supported by this vendor")
	ErrInvalidRequest       = errors.New("adapter: request is invalid")
)

// Operation names an optional adapter capability.
type Operation string

// Optional operations.
const (
	OpGenerateImage Operation = "generate_image"
	OpEditImage     Operation = "edit_image"
	OpMCPChat       Operation = "mcp_chat"
)

// Supports reports whether a implements op.
func Supports(a Adapter, op Operation) bool {
	switch op {
	case OpGenerateImage:
		_, ok := a.(ImageGenerator)
		return ok
	case OpEditImage:
		_, ok := a.(ImageEditor)
		return ok
	case OpMCPChat:
		_, ok := a.(MCPChatter)
		return ok
	default:
		return false
	}
}

// GenerateImage calls a.GenerateImage when a implements ImageGenerator.
func GenerateImage(ctx context.Context, a Adapter, req *aibridge.ImageRequest) (*aibridge.AIResponse, error) {
	g, ok := a.(ImageGenerator)
	if !ok {
		return nil, unsupported(a, OpGenerateImage)
	}
	return g.GenerateImage(ctx, req)
}

// EditImage calls a.EditImage when a implements ImageEditor.
func EditImage(ctx context.Context, a Adapter, req *aibridge.ImageEditRequest) (*aibridge.AIResponse, error) {
	e, ok := a.(ImageEditor)
	if !ok {
		return nil, unsupported(a, OpEditImage)
	}
	return e.EditImage(ctx, req)
}

// SendMCPChat calls a.SendMCPChat when a implements MCPChatter.
func SendMCPChat(ctx context.Context, a Adapter, chat *aibridge.Chat, servers []aibridge.MCPServer) (*aibridge.ChatResponse, error) {
	m, ok := a.(MCPChatter)
	if !ok {
		return nil, unsupported(a, OpMCPChat)
	}
	return m.SendMCPChat(ctx, chat, servers)
}

func unsupported(a Adapter, op Operation) error {
	return fmt.Errorf("%w: %s does not implement %s", ErrUnsupportedOperation, a.Vendor(), op)
}

// ResolveModel returns req.Model, or the bound model id when the request leaves it empty.
func ResolveModel(req *aibridge.Request, cfg aibridge.ModelConfig) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return cfg.ID
}
