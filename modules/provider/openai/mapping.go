package openai

import (
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/flemzord/chatmem/internal/provider"
)

// buildChatRequest creates a go-openai request from a provider
// CompletionRequest, merging request-level overrides with config defaults.
func (p *Provider) buildChatRequest(req provider.CompletionRequest) goopenai.ChatCompletionRequest {
	cr := goopenai.ChatCompletionRequest{
		Model:    p.config.Model,
		Messages: toMessages(req.Messages),
	}

	switch {
	case req.MaxTokens > 0:
		cr.MaxTokens = req.MaxTokens
	case p.config.MaxTokens > 0:
		cr.MaxTokens = p.config.MaxTokens
	}

	switch {
	case req.Temperature != nil:
		cr.Temperature = float32(*req.Temperature)
	case p.config.Temperature != nil:
		cr.Temperature = float32(*p.config.Temperature)
	}

	switch {
	case req.TopP != nil:
		cr.TopP = float32(*req.TopP)
	case p.config.TopP != nil:
		cr.TopP = float32(*p.config.TopP)
	}

	if len(req.Stop) > 0 {
		cr.Stop = req.Stop
	}

	return cr
}

func toMessages(msgs []provider.LLMMessage) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

func fromResponse(resp *goopenai.ChatCompletionResponse) provider.CompletionResponse {
	out := provider.CompletionResponse{
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.FinishReason = mapFinishReason(choice.FinishReason)
	return out
}

func mapFinishReason(r goopenai.FinishReason) provider.FinishReason {
	switch r {
	case goopenai.FinishReasonLength:
		return provider.FinishReasonLength
	case goopenai.FinishReasonContentFilter:
		return provider.FinishReasonFiltering
	case "":
		return ""
	default:
		return provider.FinishReasonStop
	}
}
