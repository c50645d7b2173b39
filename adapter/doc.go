// Package adapter holds the vendor-neutral machinery shared by the vendor adapters:
// the Adapter interface and its optional extensions, the capability gate, the
// streaming assembler, cost computation and error normalization.
// Vendor implementations live in the openai, anthropic, gemini and ollama subpackages.
package adapter
