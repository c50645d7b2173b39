// Package openai adapts the OpenAI APIs to the aibridge content model.
//
// Adapter targets the Responses API: Translate builds *responses.ResponseNewParams and
// ParseResponse reads *responses.Response. Inline images are sent as data URLs. Hosted web
// search, image generation and remote MCP servers are attached as tools. GenerateImage and
// EditImage use the Images API.
//
// Compat targets Chat Completions on OpenAI-compatible servers and reads the non-standard
// "reasoning_content" field as thinking.
//
// A failed stream yields an aibridge.ErrorBlock and ends without an error.
package openai
