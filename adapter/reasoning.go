package adapter

import "github.com/skosovsky/aibridge"

// HighEffortBudget is the smallest thinking budget quantized to the high tier.
const HighEffortBudget = 8192

// Token budgets used by budget-based vendors when only an effort tier is given.
const (
	LowEffortTokens    = 1024
	MediumEffortTokens = 8192
	HighEffortTokens   = 24576
)

// EffortFromBudget quantizes a thinking budget: 0 is low, below HighEffortBudget is medium,
// anything else is high. Negative budgets count as 0.
func EffortFromBudget(budget int64) aibridge.ReasoningEffort {
	switch {
	case budget <= 0:
		return aibridge.EffortLow
	case budget < HighEffortBudget:
		return aibridge.EffortMedium
	default:
		return aibridge.EffortHigh
	}
}

// ResolveEffort returns the effort tier of req. An explicit ReasoningEffort wins over the tier
// derived from BudgetTokens. The second result is false when req configures no reasoning.
func ResolveEffort(req *aibridge.Request) (aibridge.ReasoningEffort, bool) {
	if req == nil {
		return "", false
	}
	if req.ReasoningEffort != "" {
		return req.ReasoningEffort, true
	}
	if req.BudgetTokens != nil {
		return EffortFromBudget(*req.BudgetTokens), true
	}
	return "", false
}

// BudgetForEffort maps an effort tier to a token budget.
func BudgetForEffort(e aibridge.ReasoningEffort) int64 {
	switch e {
	case aibridge.EffortLow:
		return LowEffortTokens
	case aibridge.EffortHigh:
		return HighEffortTokens
	default:
		return MediumEffortTokens
	}
}

// ResolveBudget returns the token budget of req for vendors that take a budget. As in
// ResolveEffort, an explicit ReasoningEffort wins and maps through BudgetForEffort;
// otherwise BudgetTokens passes through unchanged.
func ResolveBudget(req *aibridge.Request) (int64, bool) {
	if req == nil {
		return 0, false
	}
	if req.ReasoningEffort != "" {
		return BudgetForEffort(req.ReasoningEffort), true
	}
	if req.BudgetTokens != nil {
		return *req.BudgetTokens, true
	}
	return 0, false
}
