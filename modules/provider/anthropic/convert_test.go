package anthropic

import (
	"encoding/json"
	"testing"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/flemzord/chatmem/internal/provider"
)

func TestSplitSystemMessages_LeadingSystem(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: "You are helpful."},
		{Role: provider.MessageRoleSystem, Content: "Be concise."},
		{Role: provider.MessageRoleUser, Content: "Hello"},
	}

	system, rest := splitSystemMessages(msgs, nil)

	if len(system) != 2 {
		t.Fatalf("expected 2 system blocks, got %d", len(system))
	}
	if system[0].Text != "You are helpful." {
		t.Errorf("expected first system text 'You are helpful.', got %q", system[0].Text)
	}
	if system[1].Text != "Be concise." {
		t.Errorf("expected second system text 'Be concise.', got %q", system[1].Text)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining message, got %d", len(rest))
	}
	if rest[0].Role != provider.MessageRoleUser {
		t.Errorf("expected remaining message role 'user', got %q", rest[0].Role)
	}
}

func TestSplitSystemMessages_NonLeadingMovedUp(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: "Instructions"},
		{Role: provider.MessageRoleUser, Content: "Hello"},
		{Role: provider.MessageRoleSystem, Content: "Summary of earlier turns"},
		{Role: provider.MessageRoleAssistant, Content: "Hi"},
	}

	system, rest := splitSystemMessages(msgs, nil)

	if len(system) != 2 || system[1].Text != "Summary of earlier turns" {
		t.Fatalf("system = %+v, want both system messages in order", system)
	}
	if len(rest) != 2 || rest[0].Content != "Hello" || rest[1].Content != "Hi" {
		t.Errorf("rest = %+v", rest)
	}
}

func TestSplitSystemMessages_NoSystem(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleUser, Content: "Hello"},
	}

	system, rest := splitSystemMessages(msgs, nil)

	if len(system) != 0 {
		t.Fatalf("expected 0 system blocks, got %d", len(system))
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining message, got %d", len(rest))
	}
}

func TestConvertMessages_UserAndAssistant(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleUser, Content: "Hello"},
		{Role: provider.MessageRoleAssistant, Content: "Hi there"},
		{Role: provider.MessageRoleUser, Content: "How are you?"},
	}

	result := convertMessages(msgs)

	if len(result) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result))
	}
	if result[0].Role != sdkanthropic.MessageParamRoleUser {
		t.Errorf("expected first message role 'user', got %q", result[0].Role)
	}
	if result[1].Role != sdkanthropic.MessageParamRoleAssistant {
		t.Errorf("expected second message role 'assistant', got %q", result[1].Role)
	}
}

func TestConvertMessages_MergesSameRole(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleUser, Content: "one"},
		{Role: provider.MessageRoleUser, Content: "two"},
		{Role: provider.MessageRoleAssistant, Content: "three"},
		{Role: provider.MessageRoleAssistant, Content: "four"},
		{Role: provider.MessageRoleUser, Content: "five"},
	}

	result := convertMessages(msgs)

	if len(result) != 3 {
		t.Fatalf("expected 3 alternating messages, got %d", len(result))
	}
	raw, err := json.Marshal(result[0])
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Content []struct{ Text string } `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Content) != 1 || decoded.Content[0].Text != "one\n\ntwo" {
		t.Errorf("merged content = %+v", decoded.Content)
	}
}

func TestConvertMessages_Empty(t *testing.T) {
	if got := convertMessages(nil); len(got) != 0 {
		t.Errorf("expected no messages, got %d", len(got))
	}
}

func TestConvertResponse_TextOnly(t *testing.T) {
	msg := &sdkanthropic.Message{
		Content: []sdkanthropic.ContentBlockUnion{
			textBlock("Hello world"),
		},
		StopReason: sdkanthropic.StopReasonEndTurn,
		Usage: sdkanthropic.Usage{
			InputTokens:  10,
			OutputTokens: 5,
		},
	}

	resp := convertResponse(msg)

	if resp.Content != "Hello world" {
		t.Errorf("expected content 'Hello world', got %q", resp.Content)
	}
	if resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("expected finish reason 'stop', got %q", resp.FinishReason)
	}
	if resp.Usage.PromptTokens != 10 {
		t.Errorf("expected prompt tokens 10, got %d", resp.Usage.PromptTokens)
	}
	if resp.Usage.CompletionTokens != 5 {
		t.Errorf("expected completion tokens 5, got %d", resp.Usage.CompletionTokens)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected total tokens 15, got %d", resp.Usage.TotalTokens)
	}
}

func TestConvertResponse_JoinsTextBlocks(t *testing.T) {
	msg := &sdkanthropic.Message{
		Content: []sdkanthropic.ContentBlockUnion{
			textBlock("- first point"),
			textBlock("- second point"),
		},
		StopReason: sdkanthropic.StopReasonEndTurn,
	}

	resp := convertResponse(msg)

	if resp.Content != "- first point\n- second point" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}

func TestConvertStopReason(t *testing.T) {
	tests := []struct {
		input    sdkanthropic.StopReason
		expected provider.FinishReason
	}{
		{sdkanthropic.StopReasonEndTurn, provider.FinishReasonStop},
		{sdkanthropic.StopReasonStopSequence, provider.FinishReasonStop},
		{sdkanthropic.StopReasonMaxTokens, provider.FinishReasonLength},
		{sdkanthropic.StopReasonRefusal, provider.FinishReasonFiltering},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := convertStopReason(tt.input)
			if got != tt.expected {
				t.Errorf("convertStopReason(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConvertRequest_Defaults(t *testing.T) {
	cfg := &Config{Model: "claude-sonnet-4-5-20250929", MaxTokens: 4096}
	req := provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "Hello"},
		},
	}

	params := convertRequest(req, cfg, nil)

	if params.MaxTokens != 4096 {
		t.Errorf("expected max_tokens 4096, got %d", params.MaxTokens)
	}
	if string(params.Model) != "claude-sonnet-4-5-20250929" {
		t.Errorf("expected model 'claude-sonnet-4-5-20250929', got %q", params.Model)
	}
}

func TestConvertRequest_Overrides(t *testing.T) {
	cfg := &Config{Model: "claude-sonnet-4-5-20250929", MaxTokens: 4096}
	temp := 0.1
	req := provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "Hello"},
		},
		MaxTokens:   1000,
		Temperature: &temp,
		Stop:        []string{"END"},
	}

	params := convertRequest(req, cfg, nil)

	if params.MaxTokens != 1000 {
		t.Errorf("expected max_tokens override 1000, got %d", params.MaxTokens)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.1 {
		t.Errorf("expected temperature 0.1, got %+v", params.Temperature)
	}
	if len(params.StopSequences) != 1 {
		t.Errorf("expected 1 stop sequence, got %v", params.StopSequences)
	}
}

// textBlock creates a ContentBlockUnion that behaves like a TextBlock.
func textBlock(text string) sdkanthropic.ContentBlockUnion {
	raw := `{"type":"text","text":` + jsonString(text) + `}`
	var block sdkanthropic.ContentBlockUnion
	_ = json.Unmarshal([]byte(raw), &block)
	return block
}

// jsonString returns a JSON-encoded string value.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
