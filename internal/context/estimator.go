package ctxengine

import (
	"regexp"
	"unicode/utf8"

	"github.com/flemzord/chatmem/internal/provider"
)

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s]+`)
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
)

// Surcharges added on top of the character ratio.
const (
	urlTokens       = 10
	codeBlockTokens = 5

	// messageOverhead accounts for the role/formatting wrapper of a message.
	messageOverhead = 4
)

// CharEstimator estimates tokens from a characters-per-token ratio, with
// surcharges for URLs and fenced code blocks which tokenize poorly.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for text. Non-empty text
// costs at least one token.
func (e *CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(utf8.RuneCountInString(text)) / e.CharsPerToken)
	tokens += urlTokens * len(urlPattern.FindAllStringIndex(text, -1))
	tokens += codeBlockTokens * len(codeBlockPattern.FindAllStringIndex(text, -1))
	return max(tokens, 1)
}

// EstimateMessage returns the cost of one role-tagged message.
func EstimateMessage(est TokenEstimator, role provider.MessageRole, content string) int {
	return est.Estimate(content) + est.Estimate(string(role)) + messageOverhead
}

// EstimateMessages returns the total estimated tokens for msgs.
func EstimateMessages(est TokenEstimator, msgs []provider.LLMMessage) int {
	total := 0
	for i := range msgs {
		total += EstimateMessage(est, msgs[i].Role, msgs[i].Content)
	}
	return total
}

var _ TokenEstimator = (*CharEstimator)(nil)
