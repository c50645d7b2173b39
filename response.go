package aibridge

// Usage is the cost of one response. A nil *Usage means the cost is unknown, not zero.
type Usage struct {
	InputTokens      int64   `json:"inputTokens"`
	OutputTokens     int64   `json:"outputTokens"`
	InputCost        float64 `json:"inputCost"`
	OutputCost       float64 `json:"outputCost"`
	WebSearchCost    float64 `json:"webSearchCost,omitempty"`
	TotalCost        float64 `json:"totalCost"`
	DidGenerateImage bool    `json:"didGenerateImage,omitempty"`
	DidWebSearch     bool    `json:"didWebSearch,omitempty"`
}

// AIResponse is the normalized result of a non-streaming call.
type AIResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	Usage      *Usage
	StopReason string
}

// Text returns the concatenated text content.
func (r *AIResponse) Text() string {
	if r == nil {
		return ""
	}
	return TextOf(r.Content)
}

// ErrorBlocks returns the soft failures reported alongside the content.
func (r *AIResponse) ErrorBlocks() []ErrorBlock {
	if r == nil {
		return nil
	}
	var out []ErrorBlock
	for _, b := range r.Content {
		if e, ok := b.(ErrorBlock); ok {
			out = append(out, e)
		}
	}
	return out
}

// ChatResponse is the result of a chat turn.
type ChatResponse struct {
	ResponseID string
	Message    Message
	Usage      *Usage
}
