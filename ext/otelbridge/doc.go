// Package otelbridge traces aibridge adapters with OpenTelemetry.
//
// Wrap returns an adapter that opens one span per call. Spans carry the vendor, the requested
// and reported model, token counts and cost, and one event per error block in the response.
// Private error messages are never recorded. The optional image and MCP operations are forwarded
// only when the wrapped adapter implements them, so adapter.Supports keeps working.
package otelbridge
