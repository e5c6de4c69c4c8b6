package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider: rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("provider: context length exceeded")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider: unavailable")

	// ErrAllProviders indicates all providers in the chain have been exhausted.
	ErrAllProviders = errors.New("provider: all providers failed")

	// ErrNoProvider indicates no provider is configured for the requested role.
	ErrNoProvider = errors.New("provider: no provider configured")

	// ErrEmptyResponse indicates the provider answered with no text.
	ErrEmptyResponse = errors.New("provider: empty response")

	// ErrAuth indicates the provider rejected the credentials.
	ErrAuth = errors.New("provider: authentication failed")
)

// StatusOverloaded is the non-standard status some APIs return when they
// shed load.
const StatusOverloaded = 529

// StatusError maps an HTTP status returned by a provider API onto the
// sentinel errors. contextLength marks a 400 caused by an oversized
// prompt; adapters decide that from their own error payloads.
func StatusError(name string, status int, msg string, contextLength bool) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %s", name, ErrRateLimit, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w (HTTP %d): %s", name, ErrAuth, status, msg)
	case status == http.StatusBadRequest && contextLength:
		return fmt.Errorf("%s: %w: %s", name, ErrContextLength, msg)
	case status >= http.StatusInternalServerError || status == StatusOverloaded:
		return fmt.Errorf("%s: %w (HTTP %d): %s", name, ErrProviderDown, status, msg)
	default:
		return fmt.Errorf("%s: HTTP %d: %s", name, status, msg)
	}
}

// IsRetryable reports whether the error is transient and the request
// can be retried with a different provider or after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
