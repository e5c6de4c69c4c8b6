package anthropic

import (
	"log/slog"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/flemzord/chatmem/internal/provider"
)

// convertRequest transforms a CompletionRequest into Anthropic SDK parameters.
// System messages move to the dedicated System field.
func convertRequest(req provider.CompletionRequest, cfg *Config, logger *slog.Logger) sdkanthropic.MessageNewParams {
	system, messages := splitSystemMessages(req.Messages, logger)

	params := sdkanthropic.MessageNewParams{
		Model:    sdkanthropic.Model(cfg.Model),
		Messages: convertMessages(messages),
		System:   system,
	}

	// MaxTokens: request-level override takes precedence over config default.
	params.MaxTokens = int64(cfg.MaxTokens)
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}

	if req.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdkanthropic.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	return params
}

// splitSystemMessages extracts system messages into Anthropic's System
// parameter, keeping their order, and returns the remaining messages.
// The Messages API has no inline system role, so a system message in the
// middle of a conversation (such as a summary of earlier turns) is moved
// up rather than dropped.
func splitSystemMessages(msgs []provider.LLMMessage, logger *slog.Logger) ([]sdkanthropic.TextBlockParam, []provider.LLMMessage) {
	var system []sdkanthropic.TextBlockParam
	rest := make([]provider.LLMMessage, 0, len(msgs))
	for i, m := range msgs {
		if m.Role != provider.MessageRoleSystem {
			rest = append(rest, m)
			continue
		}
		if len(rest) > 0 && logger != nil {
			logger.Debug("moving non-leading system message into the system prompt", "index", i)
		}
		system = append(system, sdkanthropic.TextBlockParam{Text: m.Content})
	}
	return system, rest
}

// convertMessages transforms conversation messages into Anthropic SDK
// message params. Consecutive messages of the same role are merged, since
// the API expects user and assistant turns to alternate.
func convertMessages(msgs []provider.LLMMessage) []sdkanthropic.MessageParam {
	var result []sdkanthropic.MessageParam
	var pending []string
	var role provider.MessageRole

	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := sdkanthropic.NewTextBlock(strings.Join(pending, "\n\n"))
		if role == provider.MessageRoleAssistant {
			result = append(result, sdkanthropic.NewAssistantMessage(block))
		} else {
			result = append(result, sdkanthropic.NewUserMessage(block))
		}
		pending = nil
	}

	for _, m := range msgs {
		if m.Role != role {
			flush()
			role = m.Role
		}
		pending = append(pending, m.Content)
	}
	flush()

	return result
}

// convertResponse transforms an Anthropic SDK Message into a CompletionResponse.
func convertResponse(msg *sdkanthropic.Message) provider.CompletionResponse {
	var content strings.Builder

	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if content.Len() > 0 {
				content.WriteString("\n")
			}
			content.WriteString(v.Text)
		}
	}

	return provider.CompletionResponse{
		Content:      content.String(),
		FinishReason: convertStopReason(msg.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// convertStopReason maps an Anthropic stop reason to a FinishReason.
func convertStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
