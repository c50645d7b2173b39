package aibridge

// Role is the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Block order is significant and preserved by every adapter.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// NewTextMessage returns a message with a single text block.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{TextBlock{Text: text}}}
}

// ToolDefinition is the vendor-neutral tool schema.
type ToolDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"` // JSON Schema for parameters
}

// MCPServer describes a remote MCP server the vendor calls on the caller's behalf.
type MCPServer struct {
	Label           string
	URL             string
	Authorization   string
	Headers         map[string]string
	AllowedTools    []string
	RequireApproval string // "always" or "never"; empty lets the vendor decide
}
