package adapter

import "github.com/google/uuid"

// NewToolCallID returns a fresh tool call id for vendors that do not assign one.
func NewToolCallID() string {
	return "call_" + uuid.NewString()
}
