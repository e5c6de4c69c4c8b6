package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrRateLimit,
		ErrContextLength,
		ErrProviderDown,
		ErrAllProviders,
		ErrNoProvider,
		ErrEmptyResponse,
		ErrAuth,
	}

	for i, a := range sentinels {
		if a.Error() == "" {
			t.Fatalf("sentinel %d has an empty message", i)
		}
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel errors must be distinct: %v and %v", a, b)
			}
		}
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", ErrRateLimit, true},
		{"provider down", ErrProviderDown, true},
		{"context length", ErrContextLength, false},
		{"empty response", ErrEmptyResponse, false},
		{"generic error", errors.New("something"), false},
		{"wrapped rate limit", fmt.Errorf("openai: %w", ErrRateLimit), true},
		{"wrapped provider down", fmt.Errorf("anthropic: %w", ErrProviderDown), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		contextLength bool
		want          error
		retryable     bool
	}{
		{"rate limit", 429, false, ErrRateLimit, true},
		{"unauthorized", 401, false, ErrAuth, false},
		{"forbidden", 403, false, ErrAuth, false},
		{"context length", 400, true, ErrContextLength, false},
		{"server error", 500, false, ErrProviderDown, true},
		{"overloaded", StatusOverloaded, false, ErrProviderDown, true},
		{"plain bad request", 400, false, nil, false},
		{"teapot", 418, false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := StatusError("test", tt.status, "boom", tt.contextLength)
			if err == nil {
				t.Fatal("StatusError returned nil")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if !strings.HasPrefix(err.Error(), "test: ") {
				t.Errorf("err = %q, want adapter prefix", err)
			}
		})
	}
}

func TestMessageRole_Valid(t *testing.T) {
	t.Parallel()

	for _, r := range []MessageRole{MessageRoleSystem, MessageRoleUser, MessageRoleAssistant} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []MessageRole{"", "tool", "User"} {
		if r.Valid() {
			t.Errorf("%q should be invalid", r)
		}
	}
}
