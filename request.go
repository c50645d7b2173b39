package aibridge

// ReasoningEffort is a discrete reasoning tier.
type ReasoningEffort string

// Reasoning tiers.
const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// Request holds the options of a single generation call.
type Request struct {
	// Model overrides the adapter's bound model id when non-empty.
	Model        string
	Messages     []Message
	SystemPrompt string
	MaxTokens    int64
	// BudgetTokens is the thinking budget. Nil leaves reasoning unconfigured; zero asks for the lowest tier.
	BudgetTokens *int64
	// ReasoningEffort wins over the tier derived from BudgetTokens.
	ReasoningEffort ReasoningEffort
	Temperature     *float64
	Tools           []ToolDefinition
	// Params carries extra sampling keys: "top_p", "top_k", "stop", "seed".
	Params             map[string]any
	PreviousResponseID string
	Store              *bool
	UseImageGeneration bool
	UseWebSearch       bool
	Image              *ImageOptions
}

// ImageOptions tune image generation and editing.
type ImageOptions struct {
	Model        string
	Size         string
	Quality      string
	Background   string
	OutputFormat string
}

// Chat is a conversation turn: prior history plus the current prompt and an optional image.
type Chat struct {
	History []Message
	Prompt  string
	// Image is an optional ImageBlock or ImageDataBlock attached to the prompt.
	Image ContentBlock
	// Options supplies everything but Messages, which are assembled from History, Prompt and Image.
	Options Request
}

// ImageRequest asks for image generation from a prompt.
type ImageRequest struct {
	Prompt  string
	Options ImageOptions
}

// ImageEditRequest asks for an edit of one or more source images.
type ImageEditRequest struct {
	Prompt  string
	Images  []ImageDataBlock
	Mask    *ImageDataBlock
	Options ImageOptions
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
