// Package aibridge defines the vendor-neutral content model shared by all adapters:
// a sealed ContentBlock union, messages, request options, responses and usage.
// Vendor translation lives in the adapter package and its vendor subpackages.
package aibridge
