package adapter

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/skosovsky/aibridge"
)

// Capabilities are the model features that decide what content may cross the vendor boundary.
type Capabilities struct {
	Vision          bool
	ImageGeneration bool
	Thinking        bool
}

// CapabilitiesOf returns the flags declared by cfg.
func CapabilitiesOf(cfg aibridge.ModelConfig) Capabilities {
	return Capabilities{
		Vision:          cfg.IsVision,
		ImageGeneration: cfg.IsImageGeneration,
		Thinking:        cfg.IsThinking,
	}
}

// Gate filters content blocks against the capabilities of one adapter instance.
// Flags are atomic so SetCapabilities may race with in-flight calls.
type Gate struct {
	vendor        string
	sink          DiagnosticSink
	imageRoles    []aibridge.Role
	thinkingInput bool

	vision          atomic.Bool
	imageGeneration atomic.Bool
	thinking        atomic.Bool
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithImageRoles sets the roles allowed to carry images. Default: user only.
func WithImageRoles(roles ...aibridge.Role) GateOption {
	return func(g *Gate) {
		g.imageRoles = append([]aibridge.Role(nil), roles...)
	}
}

// WithThinkingInput lets thinking and redacted-thinking blocks pass as input.
func WithThinkingInput() GateOption {
	return func(g *Gate) {
		g.thinkingInput = true
	}
}

// NewGate returns a gate for vendor seeded from cfg. A nil sink logs through slog.
func NewGate(vendor string, cfg aibridge.ModelConfig, sink DiagnosticSink, opts ...GateOption) *Gate {
	g := &Gate{
		vendor:     vendor,
		sink:       SinkOrDefault(sink),
		imageRoles: []aibridge.Role{aibridge.RoleUser},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.SetCapabilities(CapabilitiesOf(cfg))
	return g
}

// Capabilities returns the current flags.
func (g *Gate) Capabilities() Capabilities {
	return Capabilities{
		Vision:          g.vision.Load(),
		ImageGeneration: g.imageGeneration.Load(),
		Thinking:        g.thinking.Load(),
	}
}

// SetCapabilities overrides the flags.
func (g *Gate) SetCapabilities(c Capabilities) {
	g.vision.Store(c.Vision)
	g.imageGeneration.Store(c.ImageGeneration)
	g.thinking.Store(c.Thinking)
}

// Report sends d to the sink, stamped with the gate's vendor.
func (g *Gate) Report(ctx context.Context, d Diagnostic) {
	d.Vendor = g.vendor
	g.sink.Report(ctx, d)
}

// Filter returns block unchanged, or false when it must not be sent for role.
func (g *Gate) Filter(ctx context.Context, role aibridge.Role, block aibridge.ContentBlock) (aibridge.ContentBlock, bool) {
	switch block.(type) {
	case aibridge.ImageBlock, aibridge.ImageDataBlock:
		if !g.vision.Load() {
			g.Report(ctx, Diagnostic{
				Kind:      DiagBlockDropped,
				Message:   "image dropped: model has no vision capability",
				BlockType: aibridge.BlockType(block),
				Role:      role,
			})
			return nil, false
		}
		if !slices.Contains(g.imageRoles, role) {
			g.Report(ctx, Diagnostic{
				Kind:      DiagBlockDropped,
				Message:   "image dropped: role cannot carry images for this vendor",
				BlockType: aibridge.BlockType(block),
				Role:      role,
			})
			return nil, false
		}
	case aibridge.ThinkingBlock, aibridge.RedactedThinkingBlock:
		if !g.thinkingInput {
			return nil, false
		}
	case aibridge.MetaBlock, aibridge.ErrorBlock:
		// Output-only blocks never go back to a vendor.
		return nil, false
	case nil:
		return nil, false
	}
	return block, true
}

// FilterMessages applies Filter to every block. System messages inside the list are dropped
// with a diagnostic and messages left without content are removed.
func (g *Gate) FilterMessages(ctx context.Context, msgs []aibridge.Message) []aibridge.Message {
	out := make([]aibridge.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == aibridge.RoleSystem {
			g.Report(ctx, Diagnostic{
				Kind:    DiagBlockDropped,
				Message: "system message inside messages dropped; use the system prompt",
				Role:    m.Role,
			})
			continue
		}
		content := make([]aibridge.ContentBlock, 0, len(m.Content))
		for _, b := range m.Content {
			if kept, ok := g.Filter(ctx, m.Role, b); ok {
				content = append(content, kept)
			}
		}
		if len(content) == 0 {
			continue
		}
		out = append(out, aibridge.Message{Role: m.Role, Content: content})
	}
	return out
}

// AllowImageGeneration reports whether an image generation tool may be attached.
// A request the model cannot serve is dropped with a diagnostic.
func (g *Gate) AllowImageGeneration(ctx context.Context, requested bool) bool {
	if !requested {
		return false
	}
	if !g.imageGeneration.Load() {
		g.Report(ctx, Diagnostic{
			Kind:    DiagBlockDropped,
			Message: "image generation tool dropped: model has no image generation capability",
		})
		return false
	}
	return true
}

// Unmappable reports a block the vendor wire format cannot express.
func (g *Gate) Unmappable(ctx context.Context, role aibridge.Role, block aibridge.ContentBlock, msg string) {
	g.Report(ctx, Diagnostic{
		Kind:      DiagUnmappableContent,
		Message:   msg,
		BlockType: aibridge.BlockType(block),
		Role:      role,
	})
}
