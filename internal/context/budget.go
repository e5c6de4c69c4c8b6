package ctxengine

import "github.com/flemzord/chatmem/internal/provider"

// minOutputTokens is the floor of OptimalOutputTokens.
const minOutputTokens = 100

// Recommendation messages returned by ValidateRequest.
const (
	RecommendTruncate    = "Request exceeds context window - truncation required"
	RecommendSummarize   = "Context window nearly full - consider summarizing history"
	RecommendMonitor     = "Context window usage high - monitor for truncation needs"
	RecommendSummarizing = "Consider implementing conversation summarization"
)

// UsageSnapshot is the token accounting of one message list.
type UsageSnapshot struct {
	InputTokens          int     `json:"input_tokens"`
	ExpectedOutputTokens int     `json:"expected_output_tokens"`
	TotalUsed            int     `json:"total_used"`
	Remaining            int     `json:"remaining"`
	UsagePercentage      float64 `json:"usage_percentage"`
	IsWarning            bool    `json:"is_warning"`
	IsCritical           bool    `json:"is_critical"`
	IsOverflow           bool    `json:"is_overflow"`
}

// Validation is the result of ValidateRequest.
type Validation struct {
	Valid           bool          `json:"valid"`
	Usage           UsageSnapshot `json:"usage"`
	Recommendations []string      `json:"recommendations"`
}

// Budget computes usage of a message list against a BudgetConfig.
// It holds no mutable state and is safe for concurrent use.
type Budget struct {
	cfg       BudgetConfig
	estimator TokenEstimator
}

// NewBudget creates a Budget. A nil estimator defaults to a CharEstimator
// with the default ratio.
func NewBudget(cfg BudgetConfig, estimator TokenEstimator) *Budget {
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	return &Budget{cfg: cfg.withDefaults(), estimator: estimator}
}

// Config returns the effective configuration.
func (b *Budget) Config() BudgetConfig { return b.cfg }

// Estimator returns the estimator used by the budget.
func (b *Budget) Estimator() TokenEstimator { return b.estimator }

// CalculateUsage returns the usage of msgs plus the expected reply size.
func (b *Budget) CalculateUsage(msgs []provider.LLMMessage, expectedOutput int) UsageSnapshot {
	input := EstimateMessages(b.estimator, msgs)
	total := input + expectedOutput
	usage := float64(total) / float64(b.cfg.MaxContextTokens)

	return UsageSnapshot{
		InputTokens:          input,
		ExpectedOutputTokens: expectedOutput,
		TotalUsed:            total,
		Remaining:            b.cfg.MaxContextTokens - total,
		UsagePercentage:      usage,
		IsWarning:            usage >= b.cfg.WarningThreshold,
		IsCritical:           usage >= b.cfg.CriticalThreshold,
		IsOverflow:           total > b.cfg.MaxContextTokens,
	}
}

// ShouldTruncate reports whether msgs should be reduced before sending.
func (b *Budget) ShouldTruncate(msgs []provider.LLMMessage, expectedOutput int) bool {
	u := b.CalculateUsage(msgs, expectedOutput)
	return u.IsWarning || u.IsOverflow
}

// OptimalOutputTokens returns how many reply tokens fit after msgs, bounded
// below by 100 and above by MaxOutputTokens.
func (b *Budget) OptimalOutputTokens(msgs []provider.LLMMessage) int {
	u := b.CalculateUsage(msgs, 0)
	return min(max(u.Remaining-b.cfg.Buffer(), minOutputTokens), b.cfg.MaxOutputTokens)
}

// ValidateRequest checks msgs with a reply of maxTokens against the window.
func (b *Budget) ValidateRequest(msgs []provider.LLMMessage, maxTokens int) Validation {
	u := b.CalculateUsage(msgs, maxTokens)
	v := Validation{Valid: !u.IsOverflow, Usage: u, Recommendations: []string{}}

	switch {
	case u.IsOverflow:
		v.Recommendations = append(v.Recommendations, RecommendTruncate)
	case u.IsCritical:
		v.Recommendations = append(v.Recommendations, RecommendSummarize)
	case u.IsWarning:
		v.Recommendations = append(v.Recommendations, RecommendMonitor)
	}
	if u.UsagePercentage > 0.5 {
		v.Recommendations = append(v.Recommendations, RecommendSummarizing)
	}
	return v
}
