package ctxengine_test

import (
	"fmt"
	"strings"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/provider"
)

// testBudget is a small window where each sized message costs 105 tokens.
func testBudget() *ctxengine.Budget {
	return ctxengine.NewBudget(ctxengine.BudgetConfig{
		MaxContextTokens: 1000,
		MaxOutputTokens:  200,
		BufferTokens:     ctxengine.Tokens(50),
	}, ctxengine.NewCharEstimator(4))
}

// sized returns a message whose content is exactly runes long and starts
// with a numeric tag so ordering can be asserted.
func sized(role provider.MessageRole, i, runes int) provider.LLMMessage {
	tag := fmt.Sprintf("%03d", i)
	return provider.LLMMessage{Role: role, Content: tag + strings.Repeat("x", runes-len(tag))}
}

// makeSized creates n user messages of 400 runes (105 tokens each with the
// "user" role and overhead).
func makeSized(n int) []provider.LLMMessage {
	msgs := make([]provider.LLMMessage, n)
	for i := range msgs {
		msgs[i] = sized(provider.MessageRoleUser, i, 400)
	}
	return msgs
}
