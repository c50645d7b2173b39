package adapter

import "github.com/skosovsky/aibridge"

// ComputeResponseCost returns the cost of tokens at ratePerMillion.
func ComputeResponseCost(tokens int64, ratePerMillion float64) float64 {
	return float64(tokens) * ratePerMillion / 1_000_000
}

// TokenCounts are the usage counters and flags reported by a vendor response.
type TokenCounts struct {
	Input            int64
	Output           int64
	DidGenerateImage bool
	DidWebSearch     bool
}

// ComputeUsage prices counts with the rates of cfg. It returns nil when counts is nil
// or either base rate is unset, so callers can tell "no cost data" from "zero cost".
//
// A generated image switches every output token to ImageOutputTokenCost when that rate is set.
// A web search adds the flat WebSearchCost once.
func ComputeUsage(cfg aibridge.ModelConfig, counts *TokenCounts) *aibridge.Usage {
	if counts == nil || cfg.InputTokenCost == nil || cfg.OutputTokenCost == nil {
		return nil
	}
	outputRate := *cfg.OutputTokenCost
	if counts.DidGenerateImage && cfg.ImageOutputTokenCost != nil {
		outputRate = *cfg.ImageOutputTokenCost
	}
	u := &aibridge.Usage{
		InputTokens:      counts.Input,
		OutputTokens:     counts.Output,
		InputCost:        ComputeResponseCost(counts.Input, *cfg.InputTokenCost),
		OutputCost:       ComputeResponseCost(counts.Output, outputRate),
		DidGenerateImage: counts.DidGenerateImage,
		DidWebSearch:     counts.DidWebSearch,
	}
	if counts.DidWebSearch && cfg.WebSearchCost != nil {
		u.WebSearchCost = *cfg.WebSearchCost
	}
	u.TotalCost = u.InputCost + u.OutputCost + u.WebSearchCost
	return u
}
