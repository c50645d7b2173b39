package adapter

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/skosovsky/aibridge"
)

// Error block codes for vendor soft failures and transport errors.
const (
	CodeRefusal       = "refusal"
	CodeMaxTokens     = "max_tokens"
	CodeContextWindow = "context_window_exceeded"
	CodeSafety        = "safety"
	CodeIncomplete    = "incomplete"
	CodeCanceled      = "canceled"
	CodeVendorError   = "vendor_error"
)

var softFailureMessages = map[string]string{
	CodeRefusal:       "The model declined to respond.",
	CodeMaxTokens:     "The response was cut short because it reached the output token limit.",
	CodeContextWindow: "The conversation is too long for this model.",
	CodeSafety:        "The response was blocked by the vendor's safety filters.",
	CodeIncomplete:    "The response is incomplete.",
	CodeCanceled:      "The request was canceled.",
}

// SoftFailure returns the error block for a vendor-reported terminal state other than normal completion.
func SoftFailure(code, private string) aibridge.ErrorBlock {
	msg, ok := softFailureMessages[code]
	if !ok {
		msg = "The response ended unexpectedly."
	}
	return aibridge.ErrorBlock{Code: code, PublicMessage: msg, PrivateMessage: private}
}

// PublicMessage returns a message safe to show end users for an HTTP status.
// Status 0 means the vendor could not be reached.
func PublicMessage(status int) string {
	switch {
	case status == 0:
		return "The AI service could not be reached. Please try again later."
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "The AI service rejected the configured credentials."
	case status == http.StatusNotFound:
		return "The requested model is not available."
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return "The AI service timed out. Please try again."
	case status == http.StatusRequestEntityTooLarge:
		return "The request is too large for the AI service."
	case status == http.StatusTooManyRequests:
		return "The AI service is busy. Please try again shortly."
	case status >= 500:
		return "The AI service encountered an error. Please try again later."
	case status >= 400:
		return "The AI service could not process the request."
	default:
		return "The AI service returned an unexpected response."
	}
}

// NewErrorBlock returns an error block for a transport failure with the given status.
// An empty code becomes "http_<status>", or CodeVendorError when status is 0.
func NewErrorBlock(code string, status int, private string) aibridge.ErrorBlock {
	if code == "" {
		code = CodeVendorError
		if status != 0 {
			code = "http_" + strconv.Itoa(status)
		}
	}
	return aibridge.ErrorBlock{Code: code, PublicMessage: PublicMessage(status), PrivateMessage: private}
}

// ErrorFromJSON builds an error block from a raw vendor error body. It understands the
// {"error":{"type","code","message"}} envelope used by most vendors and a flat {"message"} body.
// fallback is used as the private message when the body carries none.
func ErrorFromJSON(status int, raw, fallback string) aibridge.ErrorBlock {
	code := ""
	private := fallback
	if gjson.Valid(raw) {
		root := gjson.Parse(raw)
		errObj := root.Get("error")
		if !errObj.Exists() || !errObj.IsObject() {
			errObj = root
		}
		if c := errObj.Get("code"); c.Exists() && c.String() != "" {
			code = c.String()
		} else if t := errObj.Get("type"); t.Exists() {
			code = t.String()
		}
		if m := errObj.Get("message"); m.Exists() && m.String() != "" {
			private = m.String()
		}
	}
	return NewErrorBlock(code, status, private)
}

// TransportErrorBlock converts a stream failure that no vendor-specific type matched.
func TransportErrorBlock(err error) aibridge.ErrorBlock {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return SoftFailure(CodeCanceled, err.Error())
	}
	return NewErrorBlock("", 0, err.Error())
}
