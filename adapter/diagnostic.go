package adapter

import (
	"context"
	"log/slog"

	"github.com/skosovsky/aibridge"
)

// Diagnostic kinds.
const (
	DiagBlockDropped       = "block_dropped"
	DiagUnmappableContent  = "unmappable_content"
	DiagEmptyText          = "empty_text"
	DiagStreamEventIgnored = "stream_event_ignored"
	DiagStreamError        = "stream_error"
)

// Diagnostic is a non-fatal observation made while mapping or parsing.
type Diagnostic struct {
	Vendor    string
	Kind      string
	Message   string
	BlockType string
	Role      aibridge.Role
}

// DiagnosticSink receives diagnostics. Implementations must be safe for concurrent use.
type DiagnosticSink interface {
	Report(ctx context.Context, d Diagnostic)
}

// SinkFunc adapts a function to DiagnosticSink.
type SinkFunc func(ctx context.Context, d Diagnostic)

// Report implements DiagnosticSink.
func (f SinkFunc) Report(ctx context.Context, d Diagnostic) { f(ctx, d) }

// SlogSink writes diagnostics at warn level. A nil Logger uses slog.Default() at report time.
type SlogSink struct {
	Logger *slog.Logger
}

// Report implements DiagnosticSink.
func (s SlogSink) Report(ctx context.Context, d Diagnostic) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"vendor", d.Vendor, "kind", d.Kind}
	if d.BlockType != "" {
		attrs = append(attrs, "block_type", d.BlockType)
	}
	if d.Role != "" {
		attrs = append(attrs, "role", string(d.Role))
	}
	logger.WarnContext(ctx, d.Message, attrs...)
}

// DiscardSink drops every diagnostic.
var DiscardSink DiagnosticSink = SinkFunc(func(context.Context, Diagnostic) {})

// SinkOrDefault returns s, or a SlogSink on the default logger when s is nil.
func SinkOrDefault(s DiagnosticSink) DiagnosticSink {
	if s == nil {
		return SlogSink{}
	}
	return s
}
