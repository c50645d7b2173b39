// Package ollama adapts the Ollama Chat API (github.com/ollama/ollama/api) to the aibridge content model.
//
// Translate returns an *api.ChatRequest; ParseResponse reads the final *api.ChatResponse.
// Images are always sent inline, so URLs go through the adapter's ImageResolver. Tool results
// become "tool" messages, and tool calls without an id get a generated one.
//
// A reasoning effort is sent as the think level; a budget alone only turns thinking on.
// Responses carry no id. A failed stream yields an aibridge.ErrorBlock and ends without an error.
package ollama
