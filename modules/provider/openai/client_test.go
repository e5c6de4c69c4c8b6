package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/flemzord/chatmem/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		APIKey:       "sk-test",
		Model:        "gpt-4o",
		BaseURL:      srv.URL,
		Organization: "org-test",
	}
	return &Provider{
		config:        cfg,
		client:        newClient(cfg, srv.Client()),
		contextWindow: 128000,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readRequestBody(t *testing.T, r *http.Request) goopenai.ChatCompletionRequest {
	t.Helper()
	var req goopenai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	return req
}

func TestComplete_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing authorization header")
		}
		if r.Header.Get("OpenAI-Organization") != "org-test" {
			t.Error("missing organization header")
		}

		req := readRequestBody(t, r)
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want gpt-4o", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Hi" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.MaxTokens != 1000 {
			t.Errorf("max_tokens = %d, want 1000", req.MaxTokens)
		}

		writeJSON(t, w, http.StatusOK, goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message:      goopenai.ChatCompletionMessage{Role: "assistant", Content: "Hello!"},
				FinishReason: goopenai.FinishReasonStop,
			}},
			Usage: goopenai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	})

	p := newTestProvider(t, handler)
	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleSystem, Content: "Summarize."},
			{Role: provider.MessageRoleUser, Content: "Hi"},
		},
		MaxTokens: 1000,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("content = %q, want Hello!", resp.Content)
	}
	if resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("finish_reason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total_tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, goopenai.ChatCompletionResponse{})
	}))

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "Hi"}},
	})
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestComplete_HTTPErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		retryable bool
	}{
		{
			name:      "rate_limit",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"message":"slow down","type":"requests"}}`,
			wantErr:   provider.ErrRateLimit,
			retryable: true,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"bad key","type":"invalid_request_error"}}`,
			wantErr: provider.ErrAuth,
		},
		{
			name:    "context_length_code",
			status:  http.StatusBadRequest,
			body:    `{"error":{"message":"too long","type":"invalid_request_error","code":"context_length_exceeded"}}`,
			wantErr: provider.ErrContextLength,
		},
		{
			name:      "server_error",
			status:    http.StatusBadGateway,
			body:      `{"error":{"message":"upstream","type":"server_error"}}`,
			wantErr:   provider.ErrProviderDown,
			retryable: true,
		},
		{
			name:      "server_error_plain_body",
			status:    http.StatusServiceUnavailable,
			body:      `overloaded`,
			wantErr:   provider.ErrProviderDown,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := p.Complete(context.Background(), provider.CompletionRequest{
				Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "Hi"}},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := provider.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestComplete_ContextCanceled(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "Hi"}},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if provider.IsRetryable(err) {
		t.Error("context errors must not be retryable")
	}
}

func TestComplete_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := Config{APIKey: "sk-test", Model: "gpt-4o", BaseURL: url}
	p := &Provider{config: cfg, client: newClient(cfg, &http.Client{Timeout: time.Second})}

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "Hi"}},
	})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("err = %v, want ErrProviderDown", err)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		models  []string
		status  int
		wantErr error
	}{
		{name: "model_served", models: []string{"gpt-4o-mini", "gpt-4o"}, status: http.StatusOK},
		{name: "model_missing", models: []string{"gpt-4o-mini"}, status: http.StatusOK, wantErr: provider.ErrProviderDown},
		{name: "server_error", status: http.StatusServiceUnavailable, wantErr: provider.ErrProviderDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/models" {
					t.Errorf("request = %s %s, want GET /models", r.Method, r.URL.Path)
				}
				if tt.status != http.StatusOK {
					writeJSON(t, w, tt.status, map[string]any{"error": map[string]string{"message": "overloaded"}})
					return
				}
				list := goopenai.ModelsList{}
				for _, id := range tt.models {
					list.Models = append(list.Models, goopenai.Model{ID: id})
				}
				writeJSON(t, w, http.StatusOK, list)
			}))

			err := p.HealthCheck(context.Background())
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("HealthCheck() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMapError_UnknownStatus(t *testing.T) {
	err := mapStatus(http.StatusTeapot, "short and stout", "")
	if err == nil || !strings.Contains(err.Error(), "HTTP 418") {
		t.Errorf("err = %v, want HTTP 418", err)
	}
	if provider.IsRetryable(err) {
		t.Error("unknown status must not be retryable")
	}
	if mapError(nil) != nil {
		t.Error("mapError(nil) must be nil")
	}
}
