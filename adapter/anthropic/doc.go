// Package anthropic adapts the Anthropic Messages API to the aibridge content model.
//
// Translate builds *anthropic.MessageNewParams and ParseResponse reads *anthropic.Message, so
// both can be used without the HTTP client. https image URLs are sent as URL sources; other
// URLs are inlined through the configured adapter.ImageResolver.
//
// Thinking and redacted-thinking blocks are accepted as assistant input and must carry the
// signature returned by the API. The thinking budget passes through unchanged, raised to the
// API minimum of 1024 tokens when lower.
//
// A failed stream yields an aibridge.ErrorBlock and then the transport error.
package anthropic
